package metrics

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignmentRun forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAssignmentRun(ev AssignmentRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignmentRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignments forwards assignments when supported by the sink.
func (m *MultiSink) RecordAssignments(recs []AssignmentRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AssignmentRecorder); ok {
			if err := rec.RecordAssignments(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordReliabilityLookup forwards lookup events when supported by the sink.
func (m *MultiSink) RecordReliabilityLookup(ev ReliabilityLookupEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ReliabilityLookupRecorder); ok {
			if err := rec.RecordReliabilityLookup(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases every sink holding a client.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
