package unityfbx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/binzume/unityfbx/converter"
	"github.com/binzume/unityfbx/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, &Settings{PrimaryBoneAxis: geom.AxisY, SecondaryBoneAxis: geom.AxisX}, s)
	require.NoError(t, s.Validate())

	opts := s.ExportOption()
	assert.Equal(t, converter.ScaleUnits, opts.ApplyScaleOptions)
	assert.Equal(t, geom.AxisNegZ, opts.AxisForward)
	assert.Equal(t, geom.AxisY, opts.AxisUp)
	assert.False(t, opts.AddLeafBones)
	assert.False(t, opts.UseSelection)
}

func TestLoadSettings(t *testing.T) {
	files := map[string]string{
		"settings.yaml": `
selected_objects: true
triangulate_faces: true
leaf_bones: true
primary_bone_axis: -Z
`,
		"settings.toml": `
selected_objects = true
triangulate_faces = true
leaf_bones = true
primary_bone_axis = "-Z"
`,
		"settings.json": `{
  "selected_objects": true,
  "triangulate_faces": true,
  "leaf_bones": true,
  "primary_bone_axis": "-Z"
}`,
	}
	expected := &Settings{
		SelectedObjects:   true,
		TriangulateFaces:  true,
		LeafBones:         true,
		PrimaryBoneAxis:   geom.AxisNegZ,
		SecondaryBoneAxis: geom.AxisX,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			s, err := LoadSettings(writeFile(t, name, content))
			require.NoError(t, err)
			assert.Equal(t, expected, s)

			opts := s.ExportOption()
			assert.True(t, opts.UseSelection)
			assert.True(t, opts.UseTriangles)
			assert.True(t, opts.AddLeafBones)
			assert.Equal(t, geom.AxisNegZ, opts.PrimaryBoneAxis)
		})
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	_, err := LoadSettings(writeFile(t, "bad.yaml", "unknown_option: true\n"))
	assert.Error(t, err)

	_, err = LoadSettings(writeFile(t, "bad.toml", "unknown_option = true\n"))
	assert.Error(t, err)

	_, err = LoadSettings(writeFile(t, "bad.json", `{"unknown_option": true}`))
	assert.Error(t, err)

	_, err = LoadSettings(writeFile(t, "settings.ini", "leaf_bones=1\n"))
	assert.Error(t, err)

	_, err = LoadSettings(writeFile(t, "axis.yaml", "primary_bone_axis: X\nsecondary_bone_axis: -X\n"))
	assert.ErrorIs(t, err, converter.ErrInvalidOption)

	_, err = LoadSettings(writeFile(t, "axis.json", `{"primary_bone_axis": "W"}`))
	assert.ErrorIs(t, err, converter.ErrInvalidOption)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
