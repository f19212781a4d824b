package generator

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"maptile-platform/tilespace"
)

// sourceFeature 一个矢量要素，几何已转为归一化坐标（x 经度、y 纬度，见 tilespace.Normalize）
type sourceFeature struct {
	geom  orb.Geometry
	bound orb.Bound
	props geojson.Properties
}

// GeoJSONSource 子图层的矢量数据源，加载后只读
type GeoJSONSource struct {
	path     string
	features []sourceFeature
	bound    orb.Bound
	// 没有几何的要素数
	skipped int
}

// normalizePoint 经纬度（度）转归一化坐标
func normalizePoint(p orb.Point) orb.Point {
	return orb.Point{tilespace.Normalize(p[0]), tilespace.Normalize(p[1])}
}

// LoadGeoJSONSource 读取 FeatureCollection 文件
func LoadGeoJSONSource(path string) (*GeoJSONSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取数据源 %s 失败: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("解析数据源 %s 失败: %w", path, err)
	}
	return NewGeoJSONSource(path, fc), nil
}

// NewGeoJSONSource fc 中的几何会被原地转换为归一化坐标
func NewGeoJSONSource(name string, fc *geojson.FeatureCollection) *GeoJSONSource {
	s := &GeoJSONSource{path: name, features: make([]sourceFeature, 0, len(fc.Features))}
	first := true
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			s.skipped++
			continue
		}
		g := project.Geometry(f.Geometry, normalizePoint)
		b := g.Bound()
		s.features = append(s.features, sourceFeature{geom: g, bound: b, props: f.Properties})
		if first {
			s.bound, first = b, false
		} else {
			s.bound = s.bound.Union(b)
		}
	}
	return s
}

func (s *GeoJSONSource) Name() string { return s.path }

func (s *GeoJSONSource) Len() int { return len(s.features) }

// Bound 全部要素的归一化外包框
func (s *GeoJSONSource) Bound() orb.Bound { return s.bound }

// Skipped 缺少几何而被忽略的要素数
func (s *GeoJSONSource) Skipped() int { return s.skipped }

func (s *GeoJSONSource) feature(i int) *sourceFeature { return &s.features[i] }

// propString 属性值转字符串，缺失时为空串
func propString(props geojson.Properties, key string) string {
	if key == "" {
		return ""
	}
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
