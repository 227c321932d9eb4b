package server

import (
	"errors"
	"fmt"
	"math"
)

// TileSize 每个图块的像素边长
const TileSize = 64

// Tile 静态图块：启动时由布局数字一次性推导，之后只读
type Tile struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Passable bool   `json:"passable"`
}

// tileDefs 布局数字到图块类型的映射
var tileDefs = map[int]Tile{
	0:  {Type: "grass", Passable: true},
	1:  {Type: "dirt_path", Passable: true},
	2:  {Type: "sand", Passable: true},
	3:  {Type: "cobblestone", Passable: true},
	4:  {Type: "oak_tree"},
	5:  {Type: "pine_tree"},
	6:  {Type: "dead_tree"},
	7:  {Type: "rock"},
	8:  {Type: "stone_wall"},
	9:  {Type: "wooden_fence"},
	10: {Type: "water"},
	11: {Type: "deep_water"},
	12: {Type: "bush"},
}

// DefaultLayout 默认地图布局（20×13，四周石墙）
var DefaultLayout = [][]int{
	{8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8},
	{8, 0, 0, 0, 0, 4, 0, 0, 12, 0, 0, 0, 4, 0, 0, 4, 0, 0, 0, 8},
	{8, 0, 1, 1, 0, 4, 0, 7, 0, 0, 12, 0, 0, 7, 0, 4, 0, 3, 0, 8},
	{8, 0, 1, 1, 0, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0, 3, 0, 8},
	{8, 0, 0, 1, 0, 0, 0, 0, 5, 5, 0, 5, 5, 0, 0, 0, 0, 3, 0, 8},
	{8, 0, 12, 0, 0, 0, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 8},
	{8, 0, 10, 10, 10, 0, 0, 7, 0, 0, 12, 0, 0, 7, 0, 0, 10, 10, 10, 8},
	{8, 0, 10, 10, 10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 10, 10, 10, 8},
	{8, 0, 0, 0, 0, 0, 0, 0, 4, 0, 4, 0, 0, 0, 0, 0, 0, 0, 0, 8},
	{8, 0, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0, 0, 6, 0, 0, 0, 0, 8},
	{8, 0, 0, 7, 0, 0, 0, 4, 0, 0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 8},
	{8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 12, 0, 0, 0, 8},
	{8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8},
}

// GameMap 可通行网格，提供越界/通行/视线查询（纯查询，无需加锁）
type GameMap struct {
	tiles    [][]Tile
	width    int
	height   int
	tileSize int
}

// NewGameMap 由布局构建地图，拒绝空布局与不规则行
func NewGameMap(layout [][]int, tileSize int) (*GameMap, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("invalid tile size %d", tileSize)
	}
	if len(layout) == 0 || len(layout[0]) == 0 {
		return nil, errors.New("empty map layout")
	}
	width := len(layout[0])
	tiles := make([][]Tile, len(layout))
	for y, row := range layout {
		if len(row) != width {
			return nil, fmt.Errorf("map row %d has %d tiles, want %d", y, len(row), width)
		}
		tiles[y] = make([]Tile, width)
		for x, id := range row {
			def, ok := tileDefs[id]
			if !ok {
				def = Tile{Type: "unknown"}
			}
			def.ID = id
			tiles[y][x] = def
		}
	}
	return &GameMap{tiles: tiles, width: width, height: len(layout), tileSize: tileSize}, nil
}

// Width 以图块计的宽度
func (m *GameMap) Width() int { return m.width }

// Height 以图块计的高度
func (m *GameMap) Height() int { return m.height }

// TileSize 图块像素边长
func (m *GameMap) TileSize() int { return m.tileSize }

// Tiles 返回网格副本，用于 map_data 下发
func (m *GameMap) Tiles() [][]Tile {
	out := make([][]Tile, len(m.tiles))
	for y, row := range m.tiles {
		out[y] = append([]Tile(nil), row...)
	}
	return out
}

// toTile 像素坐标向下取整到图块坐标（负数同样向下取整，落在界外）
func (m *GameMap) toTile(x, y float64) (int, int) {
	ts := float64(m.tileSize)
	return int(math.Floor(x / ts)), int(math.Floor(y / ts))
}

func (m *GameMap) passableTile(tx, ty int) bool {
	if tx < 0 || tx >= m.width || ty < 0 || ty >= m.height {
		return false
	}
	return m.tiles[ty][tx].Passable
}

// IsPassable 像素坐标是否可通行（越界视为不可通行）
func (m *GameMap) IsPassable(x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return false
	}
	tx, ty := m.toTile(x, y)
	return m.passableTile(tx, ty)
}

// footprintClear 起点 + 右侧 + 下方三点近似检查 size×size 碰撞盒
func (m *GameMap) footprintClear(x, y, size float64) bool {
	return m.IsPassable(x, y) && m.IsPassable(x+size, y) && m.IsPassable(x, y+size)
}

// boxClear 四角检查
func (m *GameMap) boxClear(x, y, size float64) bool {
	return m.footprintClear(x, y, size) && m.IsPassable(x+size, y+size)
}

// HasLineOfSight 在图块空间用 Bresenham 走线，途经任一图块（含起止）不可通行即无视线
func (m *GameMap) HasLineOfSight(x0, y0, x1, y1 float64) bool {
	tx, ty := m.toTile(x0, y0)
	ex, ey := m.toTile(x1, y1)

	dx := abs(ex - tx)
	dy := abs(ey - ty)
	sx, sy := 1, 1
	if tx > ex {
		sx = -1
	}
	if ty > ey {
		sy = -1
	}
	err := dx - dy

	for {
		if !m.passableTile(tx, ty) {
			return false
		}
		if tx == ex && ty == ey {
			return true
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			tx += sx
		}
		if e2 < dx {
			err += dx
			ty += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
