package rpc

import (
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apierror "github.com/hanpama/gqlbridge/internal/apierror"
)

// toStruct converts an untyped payload through its JSON form, so any
// JSON-encodable value is accepted.
func toStruct(m map[string]any) (*structpb.Struct, error) {
	if m == nil {
		return &structpb.Struct{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromStruct(s *structpb.Struct) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	return s.AsMap()
}

// failureStatus maps a bridge failure onto a gRPC status carrying the
// failure as a Struct detail.
func failureStatus(f *apierror.Failure) *status.Status {
	c := codes.Unknown
	switch f.Code {
	case apierror.Malformed:
		c = codes.InvalidArgument
	case apierror.NotImplemented:
		c = codes.Unimplemented
	}
	st := status.New(c, f.Message)
	detail, err := toStruct(map[string]any{
		"code":    string(f.Code),
		"message": f.Message,
		"details": f.Details,
	})
	if err != nil {
		return st
	}
	if withDetail, err := st.WithDetails(detail); err == nil {
		return withDetail
	}
	return st
}

func errorStatus(err error) error {
	var f *apierror.Failure
	if errors.As(err, &f) {
		return failureStatus(f).Err()
	}
	return status.FromContextError(err).Err()
}

// failureFromStatus recovers a bridge failure from a status produced by
// failureStatus. ok is false for any other status.
func failureFromStatus(st *status.Status) (f *apierror.Failure, ok bool) {
	for _, d := range st.Details() {
		s, isStruct := d.(*structpb.Struct)
		if !isStruct {
			continue
		}
		m := s.AsMap()
		code, _ := m["code"].(string)
		if code == "" {
			continue
		}
		msg, _ := m["message"].(string)
		details, _ := m["details"].(map[string]any)
		return &apierror.Failure{Code: apierror.Code(code), Message: msg, Details: details}, true
	}
	return nil, false
}
