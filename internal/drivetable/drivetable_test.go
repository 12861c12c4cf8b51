package drivetable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "drives.yaml", `
drives:
  - prefix: "SD"
    type: FAT
    options:
      capacity: 4194304
  - prefix: "SPI:"
    type: lfs
    fixed: true
    auto_format: true
    label: FLASH
    options:
      block_size: 4096
      block_count: 64
`)
	tbl, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tbl.Drives, 2)

	sd := tbl.Drives[0]
	assert.Equal(t, "SD:", sd.Prefix)
	assert.Equal(t, "fat", sd.Type)
	assert.False(t, sd.Fixed)
	assert.EqualValues(t, 4194304, sd.Options["capacity"])

	spi := tbl.Drives[1]
	assert.Equal(t, "SPI:", spi.Prefix)
	assert.True(t, spi.Fixed)
	assert.True(t, spi.AutoFormat)
	assert.Equal(t, "FLASH", spi.Label)
	assert.EqualValues(t, 64, spi.Options["block_count"])
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "drives.json", `{"drives":[{"prefix":"DF:","type":"flat","read_only":true}]}`)
	tbl, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tbl.Drives, 1)
	assert.True(t, tbl.Drives[0].ReadOnly)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no drives",
			body: "drives: []\n",
			want: "min",
		},
		{
			name: "missing type",
			body: "drives:\n  - prefix: SD\n",
			want: "required",
		},
		{
			name: "duplicate prefix ignoring case",
			body: "drives:\n  - prefix: SD\n    type: fat\n  - prefix: sd\n    type: lfs\n",
			want: "duplicate prefix",
		},
		{
			name: "separator in prefix",
			body: "drives:\n  - prefix: a/b\n    type: fat\n",
			want: "separator",
		},
		{
			name: "auto format on read-only drive",
			body: "drives:\n  - prefix: SD\n    type: fat\n    read_only: true\n    auto_format: true\n",
			want: "auto_format",
		},
		{
			name: "label too long",
			body: "drives:\n  - prefix: SD\n    type: fat\n    label: ABCDEFGHIJKL\n",
			want: "max",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "drives.yaml", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	tbl := Default()
	require.NoError(t, Validate(tbl))
	require.Len(t, tbl.Drives, 1)
	assert.Equal(t, "SPI:", tbl.Drives[0].Prefix)
	assert.True(t, tbl.Drives[0].Fixed)
	assert.True(t, tbl.Drives[0].AutoFormat)
}
