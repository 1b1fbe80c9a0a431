package testutil

import (
	"os"
	"path/filepath"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// FileSuite provides a temporary directory and a test logger to suites that
// write and read files.
type FileSuite struct {
	suite.Suite
	tempDir string
	logger  *zap.Logger
}

// SetupTest runs before each test in the suite
func (s *FileSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.logger = zaptest.NewLogger(s.T())
}

// TempDir returns the temporary directory of the running test
func (s *FileSuite) TempDir() string {
	return s.tempDir
}

// Logger returns a logger bound to the running test
func (s *FileSuite) Logger() *zap.Logger {
	return s.logger
}

// Path returns name joined to the temporary directory
func (s *FileSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// ReadFile returns the contents of a file in the temporary directory
func (s *FileSuite) ReadFile(name string) []byte {
	data, err := os.ReadFile(s.Path(name))
	require.NoError(s.T(), err)
	return data
}

// WriteFile replaces a file in the temporary directory
func (s *FileSuite) WriteFile(name string, data []byte) string {
	path := s.Path(name)
	require.NoError(s.T(), os.WriteFile(path, data, 0o644))
	return path
}
