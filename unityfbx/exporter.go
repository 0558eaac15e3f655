// Package unityfbx exports a Z up scene to an FBX file laid out for Unity.
// The scene is modified while exporting and restored afterwards.
package unityfbx

import (
	"fmt"

	"github.com/binzume/unityfbx/converter"
	"github.com/binzume/unityfbx/scene"
)

const (
	StatusFinished = "FINISHED"

	prepareLabel = "Prepare Unity FBX"
	exportLabel  = "Export Unity FBX"
)

// GeometryExporter writes the prepared scene to a file.
type GeometryExporter interface {
	Export(s *scene.Scene, path string, opts *converter.FBXExportOption) error
}

type ExportFunc func(s *scene.Scene, path string, opts *converter.FBXExportOption) error

func (f ExportFunc) Export(s *scene.Scene, path string, opts *converter.FBXExportOption) error {
	return f(s, path, opts)
}

// DefaultGeometryExporter is the built-in binary FBX exporter.
var DefaultGeometryExporter GeometryExporter = ExportFunc(func(s *scene.Scene, path string, opts *converter.FBXExportOption) error {
	return converter.NewSceneToFBXConverter(opts).Export(s, path)
})

type Exporter struct {
	Settings *Settings
	Exporter GeometryExporter
}

func NewExporter(settings *Settings) *Exporter {
	if settings == nil {
		settings = DefaultSettings()
	}
	return &Exporter{Settings: settings, Exporter: DefaultGeometryExporter}
}

// Report is the outcome of an export. Status is always StatusFinished.
type Report struct {
	TxID   string
	Status string
	Saved  bool
	Err    error
	States []State
}

var rootTypes = map[scene.ObjectType]bool{
	scene.TypeEmpty:    true,
	scene.TypeMesh:     true,
	scene.TypeArmature: true,
	scene.TypeFont:     true,
	scene.TypeCurve:    true,
	scene.TypeSurface:  true,
}

func rootObjects(s *scene.Scene) []scene.ObjectID {
	var roots []scene.ObjectID
	for _, o := range s.Objects() {
		if rootTypes[o.Type] && o.Parent() == scene.Nil {
			roots = append(roots, o.ID)
		}
	}
	return roots
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Run exports s to path. Whatever happens, the scene is reverted to its
// state before the call. The revert replaces the scene's objects, so
// *scene.Object values taken before Run must be looked up again by ID or name.
func (e *Exporter) Run(s *scene.Scene, path string) *Report {
	tx := NewTransactionContext(s, e.Settings)
	report := &Report{TxID: tx.ID.String(), Status: StatusFinished}

	if err := e.Settings.Validate(); err != nil {
		tx.logf("%v", err)
		tx.logf("File not saved.")
		report.Err = err
		report.States = tx.States
		return report
	}

	tx.logf("Preparing 3D model for Unity...")
	roots := rootObjects(s)

	s.UndoPush(prepareLabel)
	err := guard(func() error { return e.prepare(tx) })
	if err == nil {
		tx.setState(Prepared)
		err = guard(func() error { return e.fixRotations(tx, roots) })
	}
	if err == nil {
		tx.setState(RotationFixed)
		if e.Settings.ExportCollectionsAsEmpties {
			err = guard(func() error {
				proxies, err := buildProxies(tx, e.Settings.SelectedObjects)
				tx.proxies = proxies
				return err
			})
			if err == nil {
				tx.setState(ProxiesBuilt)
			}
		}
	}
	if err == nil {
		opts := e.Settings.ExportOption()
		tx.logf("Invoking default FBX Exporter: %+v", *opts)
		exporter := e.Exporter
		if exporter == nil {
			exporter = DefaultGeometryExporter
		}
		err = guard(func() error { return exporter.Export(s, path, opts) })
		if err == nil {
			tx.setState(Exported)
		}
	}
	if err != nil {
		tx.setState(Failed)
	}

	e.revert(tx)
	tx.setState(Reverted)

	if err != nil {
		tx.logf("%v", err)
		tx.logf("File not saved.")
	} else {
		tx.logf("FBX file for Unity saved.")
	}
	report.Saved = err == nil
	report.Err = err
	report.States = tx.States
	return report
}

func (e *Exporter) prepare(tx *TransactionContext) error {
	s := tx.Scene
	tx.selection = s.SelectedObjects()
	tx.recordMode()
	if err := s.SetMode(scene.ModeObject); err != nil {
		return err
	}
	normalizeVisibility(tx)
	return makeSingleUserData(tx)
}

func (e *Exporter) fixRotations(tx *TransactionContext, roots []scene.ObjectID) error {
	s := tx.Scene
	if err := applyModifiers(tx); err != nil {
		return err
	}
	for _, id := range roots {
		o := s.Object(id)
		tx.logf("%v %v", o.Name, o.Type)
		if err := fixObject(tx, id); err != nil {
			return err
		}
	}
	restoreSharedData(tx)
	s.Update()
	restoreVisibility(tx)

	s.DeselectAll()
	for _, id := range tx.selection {
		if o := s.Object(id); o != nil {
			o.Selected = true
		}
	}
	return nil
}

func (e *Exporter) revert(tx *TransactionContext) {
	s := tx.Scene
	if len(tx.proxies) > 0 {
		removeProxies(tx, tx.proxies)
		tx.proxies = nil
	}
	tx.Rollback()
	s.UndoPush("")
	if err := s.Undo(); err != nil {
		tx.logf("undo: %v", err)
	}
	s.UndoPush(exportLabel)
}
