package converter

import (
	"fmt"
	"log"

	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/scene"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

type GLTFToSceneOption struct {
	Scale float32
}

type gltfToScene struct {
	options *GLTFToSceneOption
}

func NewGLTFToSceneConverter(options *GLTFToSceneOption) *gltfToScene {
	if options == nil {
		options = &GLTFToSceneOption{}
	}
	return &gltfToScene{
		options: options,
	}
}

// yUpToZUp rotates glTF space (Y up, -Z forward) into the Z up scene space.
var yUpToZUp = geom.NewRotationXMatrix4(90)

func (c *gltfToScene) convertMesh(src *gltf.Document, m *gltf.Mesh, scale float32) (*scene.Mesh, error) {
	mesh := &scene.Mesh{}
	conv := geom.NewScaleMatrix4(scale, scale, scale).Mul(yUpToZUp)
	hasUV := false
	for _, p := range m.Primitives {
		if _, ok := p.Attributes["TEXCOORD_0"]; ok {
			hasUV = true
		}
	}
	for _, p := range m.Primitives {
		a, ok := p.Attributes["POSITION"]
		if !ok {
			continue
		}
		base := len(mesh.Vertices)
		pos, err := modeler.ReadPosition(src, src.Accessors[a], [][3]float32{})
		if err != nil {
			return nil, fmt.Errorf("mesh %v: %w", m.Name, err)
		}
		for _, v := range pos {
			mesh.Vertices = append(mesh.Vertices, conv.ApplyTo(geom.NewVector3FromArray(v)))
		}
		var texCoord [][2]float32
		if a, ok := p.Attributes["TEXCOORD_0"]; ok {
			texCoord, err = modeler.ReadTextureCoord(src, src.Accessors[a], [][2]float32{})
			if err != nil {
				return nil, fmt.Errorf("mesh %v: %w", m.Name, err)
			}
		}
		var indices []uint32
		if p.Indices != nil {
			indices, err = modeler.ReadIndices(src, src.Accessors[*p.Indices], []uint32{})
			if err != nil {
				return nil, fmt.Errorf("mesh %v: %w", m.Name, err)
			}
		} else {
			for i := range pos {
				indices = append(indices, uint32(i))
			}
		}
		for i := 0; i+2 < len(indices); i += 3 {
			tri := []int{int(indices[i]), int(indices[i+1]), int(indices[i+2])}
			face := []int{base + tri[0], base + tri[1], base + tri[2]}
			mesh.Faces = append(mesh.Faces, face)
			if !hasUV {
				continue
			}
			uvs := make([]*geom.Vector2, 3)
			for j, v := range tri {
				uvs[j] = &geom.Vector2{}
				if v < len(texCoord) {
					uvs[j] = &geom.Vector2{X: texCoord[v][0], Y: 1 - texCoord[v][1]}
				}
			}
			mesh.UVs = append(mesh.UVs, uvs)
		}
	}
	return mesh, nil
}

func nodeMatrix(n *gltf.Node) *geom.Matrix4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		return geom.NewMatrix4FromSlice(m[:])
	}
	return geom.NewTRSMatrix4(
		geom.NewVector3FromArray(n.Translation),
		geom.NewQuaternionFromArray(n.RotationOrDefault()),
		geom.NewVector3FromArray(n.ScaleOrDefault()))
}

// Convert builds a Z up scene. Meshes referenced by several nodes become
// shared datablocks.
func (c *gltfToScene) Convert(src *gltf.Document) (*scene.Scene, error) {
	scale := c.options.Scale
	if scale == 0 {
		scale = 1
	}
	name := "Scene"
	var roots []uint32
	if len(src.Scenes) > 0 {
		sc := src.Scenes[0]
		if src.Scene != nil && int(*src.Scene) < len(src.Scenes) {
			sc = src.Scenes[*src.Scene]
		}
		if sc.Name != "" {
			name = sc.Name
		}
		roots = sc.Nodes
	} else {
		isChild := map[uint32]bool{}
		for _, n := range src.Nodes {
			for _, ch := range n.Children {
				isChild[ch] = true
			}
		}
		for i := range src.Nodes {
			if !isChild[uint32(i)] {
				roots = append(roots, uint32(i))
			}
		}
	}

	s := scene.NewScene(name)
	datas := map[uint32]scene.DataID{}
	conv := geom.NewScaleMatrix4(scale, scale, scale).Mul(yUpToZUp)
	convInv := yUpToZUp.Inverse().Mul(geom.NewScaleMatrix4(1/scale, 1/scale, 1/scale))
	visited := map[uint32]bool{}

	var addNode func(index uint32, parent scene.ObjectID) error
	addNode = func(index uint32, parent scene.ObjectID) error {
		if int(index) >= len(src.Nodes) {
			return fmt.Errorf("invalid node index: %d", index)
		}
		if visited[index] {
			return fmt.Errorf("node %d is referenced twice", index)
		}
		visited[index] = true
		n := src.Nodes[index]
		objName := n.Name
		if objName == "" {
			objName = fmt.Sprintf("Node%d", index)
		}

		typ, data := scene.TypeEmpty, scene.DataID(scene.Nil)
		if n.Mesh != nil {
			id, ok := datas[*n.Mesh]
			if !ok {
				if int(*n.Mesh) >= len(src.Meshes) {
					return fmt.Errorf("node %v: invalid mesh index: %d", objName, *n.Mesh)
				}
				gm := src.Meshes[*n.Mesh]
				mesh, err := c.convertMesh(src, gm, scale)
				if err != nil {
					return err
				}
				meshName := gm.Name
				if meshName == "" {
					meshName = objName
				}
				id = s.AddData(&scene.Datablock{Name: meshName, Mesh: mesh}).ID
				datas[*n.Mesh] = id
			}
			typ, data = scene.TypeMesh, id
		}
		if n.Skin != nil {
			log.Printf("%v: skin is not supported. imported as a static mesh.", objName)
		}

		o := s.NewObject(objName, typ, data)
		if err := s.LinkObject(s.Root().ID, o.ID); err != nil {
			return err
		}
		if parent != scene.Nil {
			if err := s.SetParent(o.ID, parent); err != nil {
				return err
			}
		}
		s.SetMatrixBasis(o.ID, conv.Mul(nodeMatrix(n)).Mul(convInv))
		for _, child := range n.Children {
			if err := addNode(child, o.ID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := addNode(r, scene.Nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadGLTFScene reads a .gltf or .glb file as a scene.
func LoadGLTFScene(path string, options *GLTFToSceneOption) (*scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return NewGLTFToSceneConverter(options).Convert(doc)
}
