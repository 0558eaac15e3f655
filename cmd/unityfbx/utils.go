package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/unityfbx/converter"
	"github.com/binzume/unityfbx/fbx"
	"github.com/binzume/unityfbx/scene"
	"github.com/binzume/unityfbx/unityfbx"
)

func loadScene(input string, scale float32) (*scene.Scene, error) {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".yaml", ".yml":
		return scene.LoadYAMLFile(input)
	case ".glb", ".gltf":
		return converter.LoadGLTFScene(input, &converter.GLTFToSceneOption{Scale: scale})
	}
	return nil, fmt.Errorf("Unsupported input type: %v", input)
}

func dumpFBX(path string, w io.Writer) error {
	r, err := os.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	root, err := fbx.ParseNode(r)
	if err != nil {
		return err
	}
	fbx.Dump(w, root, false)
	return nil
}

type exportJob struct {
	input    string
	output   string
	dump     bool
	scale    float32
	exporter *unityfbx.Exporter
}

func (j *exportJob) run() error {
	s, err := loadScene(j.input, j.scale)
	if err != nil {
		return err
	}
	if j.dump {
		j.exporter.Exporter = unityfbx.ExportFunc(func(s *scene.Scene, path string, opts *converter.FBXExportOption) error {
			doc, err := converter.NewSceneToFBXConverter(opts).Convert(s)
			if err != nil {
				return err
			}
			fbx.Dump(os.Stdout, doc.BuildNode(), false)
			return nil
		})
	} else {
		log.Print("out: ", j.output)
	}
	report := j.exporter.Run(s, j.output)
	return report.Err
}
