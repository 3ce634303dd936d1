package calendar

// Readiness exposes the bootstrap state to external tests
func (s *Service) Readiness() string {
	return s.readiness().String()
}
