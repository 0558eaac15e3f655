package unityfbx

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-5

const testScene = `
name: Test
meshes:
  - name: Quad
    vertices: [[0, 0, 0], [1, 0, 0], [1, 1, 0], [0, 1, 0]]
    faces: [[0, 1, 2, 3]]
    uvs: [[[0, 0], [1, 0], [1, 1], [0, 1]]]
  - name: Shared
    vertices: [[0, 0, 0], [1, 0, 0], [0, 0, 1]]
    faces: [[0, 1, 2]]
  - name: Mirrored
    vertices: [[1, 0, 0], [2, 0, 0], [1, 1, 0]]
    faces: [[0, 1, 2]]
  - name: Single
    vertices: [[0, 0, 0], [0, 1, 0], [0, 0, 1]]
    faces: [[0, 1, 2]]
  - name: Outside
    vertices: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
    faces: [[0, 1, 2]]
collections:
  - name: Hidden
    hidden: true
    objects: [Single]
  - name: Disabled
    disabled: true
    objects: [Off]
  - name: Excluded
    exclude: true
    objects: [Excl]
objects:
  - name: Root
    location: [1, 2, 3]
    rotation: [0, 0, 45]
  - name: Body
    type: MESH
    data: Quad
    parent: Root
    location: [0, 1, 0]
    rotation: [30, 0, 0]
    scale: [1, 2, 1]
    selected: true
  - name: Leg
    type: MESH
    data: Shared
    parent: Body
    location: [0.5, 0, 0]
    rotation: [0, 90, 0]
  - name: Twin
    type: MESH
    data: Shared
    location: [3, 0, 0]
  - name: Mod1
    type: MESH
    data: Mirrored
    modifiers:
      - {type: MIRROR, axis: X}
  - name: Mod2
    type: MESH
    data: Mirrored
    location: [0, 5, 0]
  - name: Single
    type: MESH
    data: Single
    hidden: true
    rotation: [0, 0, 90]
  - name: Off
    disabled: true
    location: [0, 0, 7]
  - name: Excl
    type: MESH
    data: Outside
    parent: Body
`

func loadScene(t *testing.T, src string) *scene.Scene {
	t.Helper()
	s, err := scene.LoadYAML(strings.NewReader(src))
	require.NoError(t, err)
	return s
}

type objectSnapshot struct {
	Type          scene.ObjectType
	Data          scene.DataID
	Parent        scene.ObjectID
	Hidden        bool
	HideViewport  bool
	Selected      bool
	World         *geom.Matrix4
	Basis         *geom.Matrix4
	ParentInverse *geom.Matrix4
	Modifiers     []*scene.Modifier
	Payload       *scene.Datablock
}

type collectionSnapshot struct {
	Disabled bool
	Hidden   bool
	Exclude  bool
}

type sceneSnapshot struct {
	Mode        scene.Mode
	Objects     map[string]*objectSnapshot
	Collections map[string]collectionSnapshot
}

func takeSnapshot(s *scene.Scene) *sceneSnapshot {
	snap := &sceneSnapshot{
		Mode:        s.Mode,
		Objects:     map[string]*objectSnapshot{},
		Collections: map[string]collectionSnapshot{},
	}
	for _, o := range s.Objects() {
		os := &objectSnapshot{
			Type:          o.Type,
			Data:          o.Data,
			Parent:        o.Parent(),
			Hidden:        o.Hidden,
			HideViewport:  o.HideViewport,
			Selected:      o.Selected,
			World:         s.MatrixWorld(o.ID),
			Basis:         s.MatrixBasis(o.ID),
			ParentInverse: s.MatrixParentInverse(o.ID),
		}
		for _, m := range o.Modifiers {
			os.Modifiers = append(os.Modifiers, m.Clone())
		}
		if d := s.Data(o.Data); d != nil {
			os.Payload = d.Clone()
		}
		snap.Objects[o.Name] = os
	}
	for _, id := range append([]scene.CollectionID{s.Root().ID}, s.ChildrenRecursive(s.Root().ID)...) {
		c := s.Collection(id)
		l := s.LayerCollection(id)
		snap.Collections[c.Name] = collectionSnapshot{Disabled: c.HideViewport, Hidden: l.HideViewport, Exclude: l.Exclude}
	}
	return snap
}

func worldVertices(s *scene.Scene, id scene.ObjectID) []*geom.Vector3 {
	o := s.Object(id)
	world := s.MatrixWorld(id)
	var verts []*geom.Vector3
	for _, v := range s.Data(o.Data).Mesh.Vertices {
		verts = append(verts, world.ApplyTo(v))
	}
	return verts
}

func newTestTx(t *testing.T) *TransactionContext {
	t.Helper()
	return NewTransactionContext(loadScene(t, testScene), nil)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "ProxiesBuilt", ProxiesBuilt.String())
	assert.Equal(t, "Reverted", Reverted.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestVisibilityRoundTrip(t *testing.T) {
	tx := newTestTx(t)
	s := tx.Scene
	before := takeSnapshot(s)
	assert.False(t, s.Visible(s.ObjectByName("Single").ID))
	assert.False(t, s.Visible(s.ObjectByName("Off").ID))

	normalizeVisibility(tx)
	for _, id := range s.ViewLayerObjects() {
		assert.True(t, s.Visible(id), s.Object(id).Name)
	}
	assert.Equal(t, []scene.CollectionID{s.CollectionByName("Hidden").ID}, tx.hiddenCollections)
	assert.Equal(t, []scene.CollectionID{s.CollectionByName("Disabled").ID}, tx.disabledCollections)
	assert.Equal(t, []scene.ObjectID{s.ObjectByName("Single").ID}, tx.hiddenObjects)
	assert.Equal(t, []scene.ObjectID{s.ObjectByName("Off").ID}, tx.disabledObjects)
	// excluded collections are left alone.
	assert.True(t, s.LayerCollection(s.CollectionByName("Excluded").ID).Exclude)

	restoreVisibility(tx)
	assert.Equal(t, before, takeSnapshot(s))
	assert.Empty(t, tx.hiddenObjects)
}

func TestSingleUserData(t *testing.T) {
	tx := newTestTx(t)
	s := tx.Scene
	shared := s.ObjectByName("Twin").Data
	quad := s.ObjectByName("Body").Data

	require.NoError(t, makeSingleUserData(tx))

	// single users are untouched.
	assert.Equal(t, quad, s.ObjectByName("Body").Data)
	_, ok := tx.sharedData["Body"]
	assert.False(t, ok)
	_, ok = tx.sharedData["Single"]
	assert.False(t, ok)

	// the first user gets a copy, the last one keeps the original.
	leg := s.ObjectByName("Leg")
	assert.NotEqual(t, shared, leg.Data)
	assert.Equal(t, shared, s.ObjectByName("Twin").Data)
	assert.Equal(t, map[string]scene.DataID{"Leg": shared}, tx.SharedData())

	// users with modifiers are not shared again.
	assert.NotEqual(t, s.ObjectByName("Mod1").Data, s.ObjectByName("Mod2").Data)
	_, ok = tx.sharedData["Mod1"]
	assert.False(t, ok)

	for _, o := range s.Objects() {
		if o.Data != scene.Nil {
			assert.Equal(t, 1, s.ObjectUsers(o.Data), o.Name)
		}
	}
}

func TestSingleUserDataFakeUser(t *testing.T) {
	s := loadScene(t, `
meshes:
  - {name: Kept, fake_user: true, vertices: [[0, 0, 0]], faces: []}
objects:
  - {name: A, type: MESH, data: Kept}
`)
	tx := NewTransactionContext(s, nil)
	data := s.ObjectByName("A").Data
	require.NoError(t, makeSingleUserData(tx))
	assert.Equal(t, data, s.ObjectByName("A").Data)
	assert.Empty(t, tx.sharedData)
}

func TestApplyModifiers(t *testing.T) {
	s := loadScene(t, `
meshes:
  - {name: Half, vertices: [[1, 0, 0], [2, 0, 0], [1, 1, 0]], faces: [[0, 1, 2]]}
  - {name: Skin, vertices: [[0, 0, 0], [1, 0, 0], [0, 1, 0]], faces: [[0, 1, 2]]}
curves:
  - name: Path
    splines:
      - points: [[0, 0, 0], [1, 0, 0], [1, 1, 0]]
armatures:
  - name: Rig
    bones:
      - {name: Bone, head: [0, 0, 0], tail: [0, 0, 1]}
objects:
  - {name: Rig, type: ARMATURE, data: Rig}
  - name: Mirror
    type: MESH
    data: Half
    modifiers:
      - {type: MIRROR, axis: X}
  - name: Skinned
    type: MESH
    data: Skin
    selected: true
    modifiers:
      - {type: ARMATURE, object: Rig}
      - {type: MIRROR, axis: X}
  - {name: Path, type: CURVE, data: Path}
`)
	tx := NewTransactionContext(s, nil)
	require.NoError(t, applyModifiers(tx))

	mirror := s.ObjectByName("Mirror")
	assert.Len(t, s.Data(mirror.Data).Mesh.Vertices, 6)
	assert.Empty(t, mirror.Modifiers)
	assert.True(t, mirror.Selected)
	assert.Equal(t, scene.TypeMesh, s.ObjectByName("Path").Type)

	skinned := s.ObjectByName("Skinned")
	assert.Len(t, skinned.Modifiers, 2)
	assert.Len(t, s.Data(skinned.Data).Mesh.Vertices, 3)
	assert.False(t, skinned.Selected)
}

func TestApplyModifiersNothingEligible(t *testing.T) {
	s := loadScene(t, `
collections:
  - {name: Off, exclude: true, objects: [A]}
objects:
  - {name: A, selected: true}
`)
	tx := NewTransactionContext(s, nil)
	require.NoError(t, applyModifiers(tx))
	assert.Empty(t, s.SelectedObjects())
	tx.Rollback()
	assert.True(t, s.ObjectByName("A").Selected)
}

func TestFixRotationKeepsWorld(t *testing.T) {
	tx := newTestTx(t)
	s := tx.Scene

	worlds := map[string]*geom.Matrix4{}
	verts := map[string][]*geom.Vector3{}
	for _, o := range s.Objects() {
		worlds[o.Name] = s.MatrixWorld(o.ID)
		if o.Type == scene.TypeMesh && len(o.Modifiers) == 0 {
			verts[o.Name] = worldVertices(s, o.ID)
		}
	}
	roots := rootObjects(s)

	e := NewExporter(nil)
	require.NoError(t, e.prepare(tx))
	require.NoError(t, e.fixRotations(tx, roots))

	for _, o := range s.Objects() {
		world := s.MatrixWorld(o.ID)
		if s.InViewLayer(o.ID) {
			// the -90 X rotation now lives in the data.
			world = world.Mul(rotXNeg90)
		}
		assert.True(t, world.ApproxEqual(worlds[o.Name], eps), "%v: %v != %v", o.Name, world, worlds[o.Name])
		if v, ok := verts[o.Name]; ok {
			after := worldVertices(s, o.ID)
			require.Len(t, after, len(v), o.Name)
			for i := range v {
				assert.True(t, after[i].ApproxEqual(v[i], eps), "%v[%d]: %v != %v", o.Name, i, after[i], v[i])
			}
		}
	}

	// parent inverse matrices were folded into the basis.
	for _, name := range []string{"Body", "Leg"} {
		assert.True(t, s.MatrixParentInverse(s.ObjectByName(name).ID).IsIdentity(), name)
	}

	// visibility and selection are back.
	assert.True(t, s.ObjectByName("Single").Hidden)
	assert.True(t, s.ObjectByName("Off").HideViewport)
	assert.True(t, s.LayerCollection(s.CollectionByName("Hidden").ID).HideViewport)
	assert.True(t, s.CollectionByName("Disabled").HideViewport)
	assert.Equal(t, []scene.ObjectID{s.ObjectByName("Body").ID}, s.SelectedObjects())
}

func TestFixRotationRestoresSharedData(t *testing.T) {
	tx := newTestTx(t)
	s := tx.Scene
	shared := s.ObjectByName("Twin").Data

	e := NewExporter(nil)
	require.NoError(t, e.prepare(tx))
	require.NoError(t, e.fixRotations(tx, rootObjects(s)))

	assert.Equal(t, shared, s.ObjectByName("Leg").Data)
	assert.Equal(t, shared, s.ObjectByName("Twin").Data)
	assert.Equal(t, 2, s.ObjectUsers(shared))
	assert.Empty(t, tx.sharedData)

	// baked once: (0, 0, 1) -> (0, 1, 0)
	v := s.Data(shared).Mesh.Vertices[2]
	assert.True(t, v.ApproxEqual(&geom.Vector3{Y: 1}, eps), "%v", v)
}

const sharedOutsideScene = `
meshes:
  - {name: M, vertices: [[0, 0, 1], [1, 0, 0], [0, 1, 0]], faces: [[0, 1, 2]]}
collections:
  - {name: Off, exclude: true, objects: [B]}
objects:
  - {name: A, type: MESH, data: M, location: [1, 0, 0]}
  - {name: B, type: MESH, data: M}
`

func TestFixRotationSharedWithExcludedUser(t *testing.T) {
	s := loadScene(t, sharedOutsideScene)
	tx := NewTransactionContext(s, nil)
	a := s.ObjectByName("A").ID
	shared := s.ObjectByName("B").Data
	before := worldVertices(s, a)

	e := NewExporter(nil)
	require.NoError(t, e.prepare(tx))
	require.NoError(t, e.fixRotations(tx, rootObjects(s)))

	// B keeps the original, which is never rotated, so A keeps its copy.
	assert.NotEqual(t, shared, s.Object(a).Data)
	assert.Equal(t, shared, s.ObjectByName("B").Data)
	assert.Empty(t, tx.sharedData)
	v := s.Data(shared).Mesh.Vertices[0]
	assert.True(t, v.ApproxEqual(&geom.Vector3{Z: 1}, eps), "%v", v)

	after := worldVertices(s, a)
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, after[i].ApproxEqual(before[i], eps), "%v: %v != %v", i, after[i], before[i])
	}
}

func TestFixObjectRootOnly(t *testing.T) {
	s := loadScene(t, `
meshes:
  - {name: M, vertices: [[0, 1, 0]], faces: []}
objects:
  - {name: A, type: MESH, data: M, rotation: [0, 0, 90]}
`)
	tx := NewTransactionContext(s, nil)
	id := s.ObjectByName("A").ID
	require.NoError(t, fixObject(tx, id))
	require.NoError(t, fixObject(tx, id))

	// data rotated once.
	v := s.Data(s.Object(id).Data).Mesh.Vertices[0]
	assert.True(t, v.ApproxEqual(&geom.Vector3{Z: -1}, eps), "%v", v)
	assert.True(t, s.MatrixLocal(id).ApproxEqual(geom.NewRotationZMatrix4(90).Mul(rotXPos90), eps))
}

func TestFixObjectSkipsOutsideViewLayer(t *testing.T) {
	s := loadScene(t, `
meshes:
  - {name: M, vertices: [[0, 1, 0]], faces: []}
  - {name: N, vertices: [[0, 1, 0]], faces: []}
collections:
  - {name: Off, exclude: true, objects: [Parent]}
objects:
  - {name: Parent, type: MESH, data: M}
  - {name: Child, type: MESH, data: N, parent: Parent, location: [1, 0, 0]}
`)
	tx := NewTransactionContext(s, nil)
	require.NoError(t, fixObject(tx, s.ObjectByName("Parent").ID))

	parent := s.ObjectByName("Parent")
	child := s.ObjectByName("Child")
	assert.True(t, s.Data(parent.Data).Mesh.Vertices[0].ApproxEqual(&geom.Vector3{Y: 1}, eps))
	assert.True(t, s.Data(child.Data).Mesh.Vertices[0].ApproxEqual(&geom.Vector3{Z: -1}, eps))
	assert.True(t, tx.fixed[child.ID])
}

func TestBuildProxiesSelection(t *testing.T) {
	s := loadScene(t, `
collections:
  - name: A
    children:
      - name: B
        children:
          - name: C
            objects: [O]
  - name: D
    objects: [P]
objects:
  - {name: O, selected: true}
  - {name: P}
`)
	tx := NewTransactionContext(s, nil)
	o := s.ObjectByName("O")
	before := o.Parent()

	proxies, err := buildProxies(tx, true)
	require.NoError(t, err)
	require.Len(t, proxies, 3)

	pa := s.ObjectByName("Collection: A")
	pb := s.ObjectByName("Collection: B")
	pc := s.ObjectByName("Collection: C")
	require.NotNil(t, pa)
	require.NotNil(t, pb)
	require.NotNil(t, pc)
	assert.Nil(t, s.ObjectByName("Collection: D"))
	assert.Equal(t, []scene.ObjectID{pa.ID, pb.ID, pc.ID}, proxies)
	assert.Equal(t, scene.ObjectID(scene.Nil), pa.Parent())
	assert.Equal(t, pa.ID, pb.Parent())
	assert.Equal(t, pb.ID, pc.Parent())
	assert.Equal(t, pc.ID, o.Parent())
	assert.Equal(t, scene.ObjectID(scene.Nil), s.ObjectByName("P").Parent())
	assert.True(t, pc.Selected)
	assert.True(t, s.InViewLayer(pc.ID))

	removeProxies(tx, proxies)
	for _, obj := range s.Objects() {
		assert.False(t, strings.HasPrefix(obj.Name, "Collection: "), obj.Name)
	}
	assert.Equal(t, before, o.Parent())

	// removing twice is fine.
	removeProxies(tx, proxies)
}

func TestRemoveProxiesUnlinked(t *testing.T) {
	s := loadScene(t, `
collections:
  - {name: A, objects: [O]}
objects:
  - {name: O, selected: true}
`)
	tx := NewTransactionContext(s, nil)
	var logs bytes.Buffer
	tx.logger = log.New(&logs, "", 0)

	proxies, err := buildProxies(tx, true)
	require.NoError(t, err)
	require.Len(t, proxies, 1)
	require.NoError(t, s.UnlinkObject(s.Root().ID, proxies[0]))

	removeProxies(tx, proxies)
	assert.Nil(t, s.Object(proxies[0]))
	assert.Equal(t, scene.ObjectID(scene.Nil), s.ObjectByName("O").Parent())
	assert.Contains(t, logs.String(), "unlink Collection: A")
}

func TestBuildProxiesAll(t *testing.T) {
	s := loadScene(t, `
collections:
  - name: A
    objects: [X, Y]
    children:
      - name: B
        objects: [Y, Z]
  - name: E
    exclude: true
    objects: [W]
objects:
  - {name: X}
  - {name: Y}
  - {name: Z, parent: X}
  - {name: W}
`)
	tx := NewTransactionContext(s, nil)
	proxies, err := buildProxies(tx, false)
	require.NoError(t, err)
	require.Len(t, proxies, 2)

	pa := s.ObjectByName("Collection: A")
	pb := s.ObjectByName("Collection: B")
	assert.Equal(t, pa.ID, pb.Parent())
	assert.Equal(t, pa.ID, s.ObjectByName("X").Parent())
	// claimed by the first proxy.
	assert.Equal(t, pa.ID, s.ObjectByName("Y").Parent())
	// existing hierarchy is kept.
	assert.Equal(t, s.ObjectByName("X").ID, s.ObjectByName("Z").Parent())
	assert.False(t, pa.Selected)

	tx.Rollback()
	for _, name := range []string{"X", "Y", "W"} {
		assert.Equal(t, scene.ObjectID(scene.Nil), s.ObjectByName(name).Parent(), name)
	}
	assert.Nil(t, s.ObjectByName("Collection: A"))
}

func TestProxyNameNormalized(t *testing.T) {
	c := &scene.Collection{Name: "Cafe\u0301"}
	assert.Equal(t, "Collection: Caf\u00e9", proxyName(c))
}

func TestRollback(t *testing.T) {
	tx := newTestTx(t)
	s := tx.Scene
	tx.Settings.ExportCollectionsAsEmpties = true
	s.Mode = scene.ModeEdit
	before := takeSnapshot(s)
	count := len(s.Objects())

	e := NewExporter(tx.Settings)
	require.NoError(t, e.prepare(tx))
	assert.Equal(t, scene.ModeObject, s.Mode)
	require.NoError(t, e.fixRotations(tx, rootObjects(s)))
	proxies, err := buildProxies(tx, false)
	require.NoError(t, err)
	require.NotEmpty(t, proxies)

	tx.Rollback()
	assert.Equal(t, before, takeSnapshot(s))
	assert.Len(t, s.Objects(), count)
	assert.Empty(t, tx.journal)
}
