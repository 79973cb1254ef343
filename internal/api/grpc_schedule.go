package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"tutorslot/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// JSONCodecName is the content-subtype schedule clients must request ("application/grpc+json").
const JSONCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

// ScheduleReader is the read side of the reservation service exposed over gRPC.
type ScheduleReader interface {
	TeacherSlots(ctx context.Context, teacherID string) ([]models.Slot, error)
	StudentBookings(ctx context.Context, studentID string) ([]models.Booking, error)
	Today() string
}

type TeacherSlotsRequest struct {
	TeacherID string `json:"teacherId"`
}

type TeacherSlotsResponse struct {
	FromDate string        `json:"fromDate"`
	Slots    []models.Slot `json:"slots"`
}

type StudentBookingsRequest struct {
	StudentID string `json:"studentId"`
}

type StudentBookingsResponse struct {
	FromDate string           `json:"fromDate"`
	Bookings []models.Booking `json:"bookings"`
}

// ScheduleService answers slot and booking listings for dashboards and other backends.
type ScheduleService struct {
	reader ScheduleReader
}

func NewScheduleService(reader ScheduleReader) *ScheduleService {
	return &ScheduleService{reader: reader}
}

func (s *ScheduleService) TeacherSlots(ctx context.Context, req *TeacherSlotsRequest) (*TeacherSlotsResponse, error) {
	teacherID := strings.TrimSpace(req.TeacherID)
	if teacherID == "" {
		return nil, status.Error(codes.InvalidArgument, "teacherId is required")
	}

	slots, err := s.reader.TeacherSlots(ctx, teacherID)
	if err != nil {
		return nil, grpcError(err)
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	return &TeacherSlotsResponse{FromDate: s.reader.Today(), Slots: slots}, nil
}

func (s *ScheduleService) StudentBookings(ctx context.Context, req *StudentBookingsRequest) (*StudentBookingsResponse, error) {
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		return nil, status.Error(codes.InvalidArgument, "studentId is required")
	}

	bookings, err := s.reader.StudentBookings(ctx, studentID)
	if err != nil {
		return nil, grpcError(err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return &StudentBookingsResponse{FromDate: s.reader.Today(), Bookings: bookings}, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

type scheduleServer interface {
	TeacherSlots(ctx context.Context, req *TeacherSlotsRequest) (*TeacherSlotsResponse, error)
	StudentBookings(ctx context.Context, req *StudentBookingsRequest) (*StudentBookingsResponse, error)
}

var scheduleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*scheduleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TeacherSlots", Handler: teacherSlotsHandler},
		{MethodName: "StudentBookings", Handler: studentBookingsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tutorslot/schedule",
}

func teacherSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TeacherSlotsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(scheduleServer).TeacherSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/TeacherSlots"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(scheduleServer).TeacherSlots(ctx, req.(*TeacherSlotsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func studentBookingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StudentBookingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(scheduleServer).StudentBookings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/StudentBookings"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(scheduleServer).StudentBookings(ctx, req.(*StudentBookingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
