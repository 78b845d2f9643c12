package dispatch

// Recorder receives dispatch outcomes and guardrail rejections
type Recorder interface {
	Dispatch(family Family, op Operation, outcome string)
	Rejection(code string)
}

// Outcomes reported to a Recorder
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type nopRecorder struct{}

func (nopRecorder) Dispatch(Family, Operation, string) {}
func (nopRecorder) Rejection(string)                   {}

// MetricsSink is the counter backend behind NewMetricsRecorder
type MetricsSink interface {
	RecordDispatch(family, operation, outcome string)
	RecordGuardrailRejection(code string)
}

type metricsRecorder struct {
	sink MetricsSink
}

// NewMetricsRecorder adapts a metrics backend to a Recorder
func NewMetricsRecorder(sink MetricsSink) Recorder {
	return metricsRecorder{sink: sink}
}

func (r metricsRecorder) Dispatch(family Family, op Operation, outcome string) {
	r.sink.RecordDispatch(string(family), string(op), outcome)
}

func (r metricsRecorder) Rejection(code string) {
	r.sink.RecordGuardrailRejection(code)
}
