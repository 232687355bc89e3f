package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		url       string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{"https://github.com/acme/demo-app", "acme", "demo-app", false},
		{"https://github.com/acme/demo-app/", "acme", "demo-app", false},
		{"https://github.com/acme/demo-app.git", "acme", "demo-app", false},
		{"git@github.com:acme/demo-app.git", "acme", "demo-app", false},
		{"not-a-url", "", "", true},
	}

	for _, tt := range tests {
		owner, name, err := ParseRepoURL(tt.url)
		if tt.wantErr {
			require.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.wantOwner, owner, tt.url)
		assert.Equal(t, tt.wantName, name, tt.url)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "demo-app", SanitizeName("Demo App"))
	assert.Equal(t, "my-repo-v2", SanitizeName("my.repo@v2"))
	assert.Equal(t, "demo", SanitizeName("--demo--"))
	assert.Equal(t, "a-b", SanitizeName("a///b"))
	assert.Equal(t, "snake_case", SanitizeName("snake_case"))
}

func TestFormatDeploymentURL(t *testing.T) {
	assert.Equal(t, "http://203.0.113.10:8000", FormatDeploymentURL("203.0.113.10", 8000))
}

func TestValidateRepoURL(t *testing.T) {
	assert.NoError(t, ValidateRepoURL("https://github.com/acme/demo-app"))
	assert.NoError(t, ValidateRepoURL("https://github.com/acme/demo-app.git"))
	assert.NoError(t, ValidateRepoURL("git@github.com:acme/demo-app.git"))

	assert.Error(t, ValidateRepoURL(""))
	assert.Error(t, ValidateRepoURL("https://gitlab.com/acme/demo-app"))
	assert.Error(t, ValidateRepoURL("ftp://github.com/acme/demo-app"))
	assert.Error(t, ValidateRepoURL("https://github.com/acme"))
}

func TestValidateDeployConfig(t *testing.T) {
	assert.Empty(t, ValidateDeployConfig("https://github.com/acme/demo-app", 8000))

	problems := ValidateDeployConfig("bad-url", 99999)
	assert.Len(t, problems, 2)
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort(8000))
	assert.NoError(t, ValidatePort(80))
	assert.Error(t, ValidatePort(0))
	assert.Error(t, ValidatePort(65536))
	assert.Error(t, ValidatePort(-1))
}
