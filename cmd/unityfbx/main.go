package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/unityfbx"
)

func defaultOutputFile(input string) string {
	ext := filepath.Ext(input)
	return input[0:len(input)-len(ext)] + ".fbx"
}

type axisFlag struct {
	axis *geom.Axis
}

func (f axisFlag) String() string {
	if f.axis == nil {
		return ""
	}
	return string(*f.axis)
}

func (f axisFlag) Set(s string) error {
	a, err := geom.ParseAxis(strings.ToUpper(s))
	if err != nil {
		return err
	}
	*f.axis = a
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s input.yaml|input.glb [output.fbx]\n", os.Args[0])
		flag.PrintDefaults()
	}
	settingsFile := flag.String("settings", "", "settings file (.yaml, .toml, .json)")
	dump := flag.Bool("dump", false, "print FBX as text instead of writing it")
	watch := flag.Bool("watch", false, "export again when the input is modified")
	scale := flag.Float64("scale", 1, "glTF import scale")

	// defaults are applied after loading the settings file.
	flags := unityfbx.Settings{PrimaryBoneAxis: geom.AxisY, SecondaryBoneAxis: geom.AxisX}
	flag.BoolVar(&flags.ActiveCollection, "active_collection", false, "export the active collection only")
	flag.BoolVar(&flags.SelectedObjects, "selected_objects", false, "export selected objects only")
	flag.BoolVar(&flags.ExportCollectionsAsEmpties, "collections_as_empties", false, "export collections as empty nodes")
	flag.BoolVar(&flags.UseCustomProps, "custom_props", false, "export custom properties")
	flag.BoolVar(&flags.TangentSpace, "tangent_space", false, "export tangents and binormals")
	flag.BoolVar(&flags.TriangulateFaces, "triangulate", false, "triangulate faces")
	flag.BoolVar(&flags.DeformBones, "deform_bones", false, "export deforming bones only")
	flag.BoolVar(&flags.LeafBones, "leaf_bones", false, "add leaf bones")
	flag.Var(axisFlag{&flags.PrimaryBoneAxis}, "primary_bone_axis", "primary bone axis (X, Y, Z, -X, -Y, -Z)")
	flag.Var(axisFlag{&flags.SecondaryBoneAxis}, "secondary_bone_axis", "secondary bone axis (X, Y, Z, -X, -Y, -Z)")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return
	}
	input := flag.Arg(0)
	output := defaultOutputFile(input)
	if flag.NArg() > 1 {
		output = flag.Arg(1)
	}

	settings := unityfbx.DefaultSettings()
	if *settingsFile != "" {
		var err error
		if settings, err = unityfbx.LoadSettings(*settingsFile); err != nil {
			log.Fatal(err)
		}
	}
	overrideSettings(settings, &flags)
	if err := settings.Validate(); err != nil {
		log.Fatal(err)
	}

	if strings.ToLower(filepath.Ext(input)) == ".fbx" {
		if err := dumpFBX(input, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	job := &exportJob{
		input:    input,
		output:   output,
		dump:     *dump,
		scale:    float32(*scale),
		exporter: unityfbx.NewExporter(settings),
	}
	if err := job.run(); err != nil {
		if !*watch {
			log.Fatal(err)
		}
		log.Println(err)
	}
	if *watch {
		if err := watchInput(job); err != nil {
			log.Fatal(err)
		}
	}
}

// overrideSettings copies the flags given on the command line.
func overrideSettings(s, flags *unityfbx.Settings) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "active_collection":
			s.ActiveCollection = flags.ActiveCollection
		case "selected_objects":
			s.SelectedObjects = flags.SelectedObjects
		case "collections_as_empties":
			s.ExportCollectionsAsEmpties = flags.ExportCollectionsAsEmpties
		case "custom_props":
			s.UseCustomProps = flags.UseCustomProps
		case "tangent_space":
			s.TangentSpace = flags.TangentSpace
		case "triangulate":
			s.TriangulateFaces = flags.TriangulateFaces
		case "deform_bones":
			s.DeformBones = flags.DeformBones
		case "leaf_bones":
			s.LeafBones = flags.LeafBones
		case "primary_bone_axis":
			s.PrimaryBoneAxis = flags.PrimaryBoneAxis
		case "secondary_bone_axis":
			s.SecondaryBoneAxis = flags.SecondaryBoneAxis
		}
	})
}
