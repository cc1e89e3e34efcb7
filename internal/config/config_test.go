package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_validTCPConfigWithDefaults(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
tcp:
  ip: 192.168.1.10
  port: 4196
`
	c, err := Parse([]byte(yamlSrc))
	require.NoError(t, err)
	assert.Equal(t, "nasaEhsBridge", c.MQTT.TopicPrefix)
	assert.Equal(t, "nasaEhsBridge", c.MQTT.ClientID)
	assert.True(t, c.Logging.DeviceAddedEnabled())
	assert.NotNil(t, c.TCP)
	assert.Nil(t, c.Serial)
}

func TestParse_serialAndTCPBothSetIsRejected(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
serial:
  device: /dev/ttyUSB0
  baudrate: 9600
tcp:
  ip: 192.168.1.10
  port: 4196
`
	_, err := Parse([]byte(yamlSrc))
	assert.Error(t, err)
}

func TestParse_neitherSerialNorTCPIsRejected(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
`
	_, err := Parse([]byte(yamlSrc))
	assert.Error(t, err)
}

func TestParse_missingRepositoryFileIsRejected(t *testing.T) {
	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: /nonexistent/repo.yaml
tcp:
  ip: 192.168.1.10
  port: 4196
`
	_, err := Parse([]byte(yamlSrc))
	assert.Error(t, err)
}

func TestParse_mqttUserWithoutPasswordIsRejected(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
  user: someone
general:
  nasaRepositoryFile: ` + repoPath + `
tcp:
  ip: 192.168.1.10
  port: 4196
`
	_, err := Parse([]byte(yamlSrc))
	assert.Error(t, err)
}

func TestParse_pollingGroupNameMismatchIsRejected(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
tcp:
  ip: 192.168.1.10
  port: 4196
polling:
  fetch_interval:
    - name: basic
      enable: true
      schedule: "30s"
  groups:
    other: ["A"]
`
	_, err := Parse([]byte(yamlSrc))
	assert.Error(t, err)
}

func TestParse_explicitDeviceAddedFalseIsHonored(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
tcp:
  ip: 192.168.1.10
  port: 4196
logging:
  deviceAdded: false
`
	c, err := Parse([]byte(yamlSrc))
	require.NoError(t, err)
	assert.False(t, c.Logging.DeviceAddedEnabled())
}

func TestParse_enabledFetchIntervalWithoutScheduleIsRejected(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
tcp:
  ip: 192.168.1.10
  port: 4196
polling:
  fetch_interval:
    - name: basic
      enable: true
  groups:
    basic: ["A"]
`
	_, err := Parse([]byte(yamlSrc))
	assert.Error(t, err)
}

func TestParse_disabledFetchIntervalWithoutScheduleIsAccepted(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
tcp:
  ip: 192.168.1.10
  port: 4196
polling:
  fetch_interval:
    - name: basic
      enable: false
  groups:
    basic: ["A"]
`
	c, err := Parse([]byte(yamlSrc))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), c.Polling.FetchInterval[0].Interval)
}

func TestParse_pollingScheduleResolvedToInterval(t *testing.T) {
	dir := t.TempDir()
	repoPath := writeTempFile(t, dir, "repo.yaml", "A:\n  address: \"0x1000\"\n  type: VAR\n")

	yamlSrc := `
mqtt:
  broker-url: localhost
  broker-port: 1883
general:
  nasaRepositoryFile: ` + repoPath + `
tcp:
  ip: 192.168.1.10
  port: 4196
polling:
  fetch_interval:
    - name: basic
      enable: true
      schedule: "10m"
  groups:
    basic: ["A"]
`
	c, err := Parse([]byte(yamlSrc))
	require.NoError(t, err)
	require.Len(t, c.Polling.FetchInterval, 1)
	assert.Equal(t, 10*time.Minute, c.Polling.FetchInterval[0].Interval)
}

func TestParseTimeString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", in: "10s", want: 10 * time.Second},
		{name: "minutes", in: "10m", want: 10 * time.Minute},
		{name: "hours", in: "2h", want: 2 * time.Hour},
		{name: "uppercase unit", in: "5S", want: 5 * time.Second},
		{name: "invalid unit", in: "10d", wantErr: true},
		{name: "not numeric", in: "ten s", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
