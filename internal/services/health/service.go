package health

// Gauge exposes admission occupancy without tying health checks to the pipeline package.
type Gauge interface {
	Capacity() int
	InUse() int
	Waiting() int
}

// AdmissionStatus is a point-in-time view of the analysis slots.
type AdmissionStatus struct {
	Capacity int `json:"capacity"`
	InUse    int `json:"inUse"`
	Waiting  int `json:"waiting"`
}

// Status is the health payload.
type Status struct {
	OK        bool             `json:"ok"`
	Admission *AdmissionStatus `json:"admission,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	admission Gauge
}

// NewService constructs a health service. admission may be nil.
func NewService(admission Gauge) *Service {
	return &Service{admission: admission}
}

// Status reports liveness and, when known, admission occupancy. A saturated
// controller is still healthy; queued runs wait for a slot.
func (s *Service) Status() Status {
	st := Status{OK: true}
	if s == nil || s.admission == nil {
		return st
	}
	st.Admission = &AdmissionStatus{
		Capacity: s.admission.Capacity(),
		InUse:    s.admission.InUse(),
		Waiting:  s.admission.Waiting(),
	}
	return st
}
