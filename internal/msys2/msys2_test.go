package msys2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Environment
		wantErr bool
	}{
		{name: "MSYSTEM upper case", input: "UCRT64", want: EnvUcrt64},
		{name: "lower case", input: "clang64", want: EnvClang64},
		{name: "mixed case with spaces", input: " ClangArm64 ", want: EnvClangArm64},
		{name: "msys", input: "MSYS", want: EnvMsys},
		{name: "unknown", input: "cygwin", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnvironment(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "valid: msys, mingw64")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvironmentPrefixAndArch(t *testing.T) {
	tests := []struct {
		env    Environment
		prefix string
		arch   Arch
	}{
		{env: EnvMsys, prefix: "/usr", arch: ArchX86_64},
		{env: EnvMingw64, prefix: "/mingw64", arch: ArchX86_64},
		{env: EnvUcrt64, prefix: "/ucrt64", arch: ArchX86_64},
		{env: EnvClang64, prefix: "/clang64", arch: ArchX86_64},
		{env: EnvMingw32, prefix: "/mingw32", arch: ArchI686},
		{env: EnvClang32, prefix: "/clang32", arch: ArchI686},
		{env: EnvClangArm64, prefix: "/clangarm64", arch: ArchAArch64},
	}

	for _, tt := range tests {
		t.Run(tt.env.String(), func(t *testing.T) {
			assert.True(t, tt.env.IsValid())
			assert.Equal(t, tt.prefix, tt.env.Prefix())
			assert.Equal(t, tt.arch, tt.env.Arch())
		})
	}

	assert.False(t, Environment("cygwin").IsValid())
}

// TestEnvironmentForTarget verifies the triple table, including known
// but unsupported targets.
func TestEnvironmentForTarget(t *testing.T) {
	tests := []struct {
		triple  string
		want    Environment
		wantErr string
	}{
		{triple: "x86_64-pc-windows-gnu", want: EnvMingw64},
		{triple: "x86_64-pc-windows-gnullvm", want: EnvClang64},
		{triple: "x86_64-uwp-windows-gnu", want: EnvUcrt64},
		{triple: "i686-pc-windows-gnu", want: EnvMingw32},
		{triple: "aarch64-pc-windows-gnullvm", want: EnvClangArm64},
		{triple: "x86_64-pc-windows-msvc", wantErr: "not supported by MSYS2"},
		{triple: "i686-uwp-windows-gnu", wantErr: "not supported by MSYS2"},
		{triple: "x86_64-unknown-linux-gnu", wantErr: "unknown target triple"},
	}

	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			got, err := EnvironmentForTarget(tt.triple)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
