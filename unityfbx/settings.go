package unityfbx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/binzume/unityfbx/converter"
	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/scene"
	"gopkg.in/yaml.v2"
)

// Settings are the user facing export options.
type Settings struct {
	ActiveCollection           bool      `json:"active_collection" yaml:"active_collection" toml:"active_collection"`
	SelectedObjects            bool      `json:"selected_objects" yaml:"selected_objects" toml:"selected_objects"`
	ExportCollectionsAsEmpties bool      `json:"export_collections_as_empties" yaml:"export_collections_as_empties" toml:"export_collections_as_empties"`
	UseCustomProps             bool      `json:"use_custom_props" yaml:"use_custom_props" toml:"use_custom_props"`
	TangentSpace               bool      `json:"tangent_space" yaml:"tangent_space" toml:"tangent_space"`
	TriangulateFaces           bool      `json:"triangulate_faces" yaml:"triangulate_faces" toml:"triangulate_faces"`
	DeformBones                bool      `json:"deform_bones" yaml:"deform_bones" toml:"deform_bones"`
	LeafBones                  bool      `json:"leaf_bones" yaml:"leaf_bones" toml:"leaf_bones"`
	PrimaryBoneAxis            geom.Axis `json:"primary_bone_axis" yaml:"primary_bone_axis" toml:"primary_bone_axis"`
	SecondaryBoneAxis          geom.Axis `json:"secondary_bone_axis" yaml:"secondary_bone_axis" toml:"secondary_bone_axis"`
}

func DefaultSettings() *Settings {
	return &Settings{
		PrimaryBoneAxis:   geom.AxisY,
		SecondaryBoneAxis: geom.AxisX,
	}
}

// LoadSettings reads a .yaml, .toml or .json file. Missing keys keep their defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := DefaultSettings()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(data, s)
	case ".toml":
		var md toml.MetaData
		md, err = toml.NewDecoder(bytes.NewReader(data)).Decode(s)
		if err == nil && len(md.Undecoded()) > 0 {
			err = fmt.Errorf("unknown keys: %v", md.Undecoded())
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(s)
	default:
		return nil, fmt.Errorf("unsupported settings file: %v", path)
	}
	if err != nil {
		return nil, fmt.Errorf("settings %v: %w", path, err)
	}
	return s, s.Validate()
}

func (s *Settings) Validate() error {
	return s.ExportOption().Validate()
}

// ExportOption returns the parameter bundle passed to the FBX exporter.
func (s *Settings) ExportOption() *converter.FBXExportOption {
	opts := converter.DefaultFBXExportOption()
	opts.ApplyScaleOptions = converter.ScaleUnits
	opts.ObjectTypes = []scene.ObjectType{scene.TypeEmpty, scene.TypeMesh, scene.TypeArmature}
	opts.UseActiveCollection = s.ActiveCollection
	opts.UseSelection = s.SelectedObjects
	opts.UseCustomProps = s.UseCustomProps
	opts.UseTSpace = s.TangentSpace
	opts.UseTriangles = s.TriangulateFaces
	opts.ArmatureDeformOnly = s.DeformBones
	opts.AddLeafBones = s.LeafBones
	opts.PrimaryBoneAxis = s.PrimaryBoneAxis
	opts.SecondaryBoneAxis = s.SecondaryBoneAxis
	return opts
}
