package circuit

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Breaker Test Suite
// =============================================================================
// Configured the way the service backend client is wired: five consecutive
// failures open the circuit, two consecutive successes close it again.

type BreakerSuite struct {
	suite.Suite
	breaker *Breaker
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.breaker = New("service-backend", WithFailureThreshold(5), WithSuccessThreshold(2))
}

func (s *BreakerSuite) fail(n int) (useFallback bool, change StateChange) {
	for range n {
		useFallback, change = s.breaker.RecordFailure()
	}
	return useFallback, change
}

func (s *BreakerSuite) TestDefaults() {
	b := New("payments")
	s.Equal("payments", b.Name())
	s.Equal(StateClosed, b.State())
	s.Equal("closed", b.State().String())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	s.False(b.IsOpen(), "defaults tolerate four failures")
	b.RecordFailure()
	s.True(b.IsOpen())
	s.Equal("open", b.State().String())
}

// =============================================================================
// Degrading
// =============================================================================

func (s *BreakerSuite) TestDegrading() {
	s.Run("a backend outage opens the circuit on the fifth failed call", func() {
		useFallback, change := s.fail(4)
		s.False(useFallback)
		s.False(change.Opened)
		s.False(s.breaker.IsOpen())

		useFallback, change = s.fail(1)
		s.True(useFallback)
		s.True(change.Opened)
		s.True(s.breaker.IsOpen())
	})

	s.Run("further failures while degraded report no new transition", func() {
		useFallback, change := s.fail(3)
		s.True(useFallback)
		s.False(change.Opened)
	})
}

func (s *BreakerSuite) TestFlappingBackendStaysClosed() {
	for range 3 {
		s.fail(4)
		usePrimary, change := s.breaker.RecordSuccess()
		s.True(usePrimary)
		s.False(change.Closed, "already closed")
	}
	s.False(s.breaker.IsOpen(), "failures must be consecutive")
}

// =============================================================================
// Recovering
// =============================================================================

func (s *BreakerSuite) TestRecovery() {
	s.fail(5)
	s.Require().True(s.breaker.IsOpen())

	s.Run("one good call is not enough", func() {
		usePrimary, change := s.breaker.RecordSuccess()
		s.False(usePrimary)
		s.False(change.Closed)
		s.True(s.breaker.IsOpen())
	})

	s.Run("a failure in between restarts the count", func() {
		s.breaker.RecordFailure()
		usePrimary, _ := s.breaker.RecordSuccess()
		s.False(usePrimary)
		s.True(s.breaker.IsOpen())
	})

	s.Run("two consecutive good calls close the circuit", func() {
		usePrimary, change := s.breaker.RecordSuccess()
		s.True(usePrimary)
		s.True(change.Closed)
		s.Equal(StateClosed, s.breaker.State())
	})

	s.Run("the failure count starts fresh after recovery", func() {
		s.fail(4)
		s.False(s.breaker.IsOpen())
	})
}

func (s *BreakerSuite) TestReset() {
	s.fail(5)
	s.breaker.Reset()
	s.Equal(StateClosed, s.breaker.State())

	s.fail(4)
	s.False(s.breaker.IsOpen(), "reset clears the failure count")
}
