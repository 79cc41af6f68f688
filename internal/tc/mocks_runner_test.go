package tc

import (
	"strings"

	"github.com/stretchr/testify/mock"
)

// MockCommandRunner is a testify-based CommandRunner double, for tests that
// want to assert on exact argv expectations rather than just recording
// calls.
type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(argv ArgVec) error {
	result := m.Called(strings.Join(argv, " "))
	return result.Error(0)
}
