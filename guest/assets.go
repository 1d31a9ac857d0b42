package guest

// Resource handles are small nonzero integers; 0 means "unbound".
type Handle uint32

// AssetKind distinguishes the asset-fetch host-call families.
type AssetKind int

const (
	AssetTexture AssetKind = iota
	AssetMesh
	AssetSkeleton
	AssetSound
	AssetFont
)

// AssetPack is the module's immutable, read-only asset blob: string ids
// resolve to raw byte payloads once, during init, and the resulting handles
// are the only thing that crosses into GuestState.
type AssetPack struct {
	textures  map[string][]byte
	meshes    map[string][]byte
	skeletons map[string][]byte
	sounds    map[string][]byte
	fonts     map[string][]byte
	data      map[string][]byte
}

// NewAssetPack builds an AssetPack from named byte blobs per kind.
func NewAssetPack() *AssetPack {
	return &AssetPack{
		textures:  map[string][]byte{},
		meshes:    map[string][]byte{},
		skeletons: map[string][]byte{},
		sounds:    map[string][]byte{},
		fonts:     map[string][]byte{},
		data:      map[string][]byte{},
	}
}

func (p *AssetPack) Put(kind AssetKind, id string, data []byte) {
	var m map[string][]byte
	switch kind {
	case AssetTexture:
		m = p.textures
	case AssetMesh:
		m = p.meshes
	case AssetSkeleton:
		m = p.skeletons
	case AssetSound:
		m = p.sounds
	case AssetFont:
		m = p.fonts
	}
	if m != nil {
		m[id] = data
	}
}

func (p *AssetPack) PutData(id string, data []byte) { p.data[id] = data }

func (p *AssetPack) lookup(kind AssetKind, id string) ([]byte, bool) {
	var m map[string][]byte
	switch kind {
	case AssetTexture:
		m = p.textures
	case AssetMesh:
		m = p.meshes
	case AssetSkeleton:
		m = p.skeletons
	case AssetSound:
		m = p.sounds
	case AssetFont:
		m = p.fonts
	default:
		return nil, false
	}
	b, ok := m[id]
	return b, ok
}

// handleArena assigns dense, monotonically increasing handles to resolved
// asset ids — init-only, so handles stay stable for the whole session and
// never appear in a snapshot.
type handleArena struct {
	byID     map[string]Handle
	byHandle map[Handle]string
	next     Handle
}

func newHandleArena() *handleArena {
	return &handleArena{byID: map[string]Handle{}, byHandle: map[Handle]string{}, next: 1}
}

func (a *handleArena) resolve(id string) Handle {
	if h, ok := a.byID[id]; ok {
		return h
	}
	h := a.next
	a.next++
	a.byID[id] = h
	a.byHandle[h] = id
	return h
}

func (a *handleArena) idFor(h Handle) (string, bool) {
	id, ok := a.byHandle[h]
	return id, ok
}
