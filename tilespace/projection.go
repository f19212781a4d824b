package tilespace

import "math"

// LatLng 经纬度（度）
type LatLng struct {
	Lat, Lng float64
}

// PixelPoint 像素坐标，原点在左下
type PixelPoint struct {
	X, Y int64
}

// MercatorProjection Web Mercator 像素投影，按层级预计算比例表
type MercatorProjection struct {
	pixelsPerLonDegree [Max2DClientLevel + 1]float64
	pixelsPerLonRadian [Max2DClientLevel + 1]float64
	pixelOrigin        [Max2DClientLevel + 1]float64
	pixelsRange        [Max2DClientLevel + 1]int64
}

// NewMercatorProjection tileSize 为第 0 层世界图的像素宽度
func NewMercatorProjection(tileSize uint32) *MercatorProjection {
	p := &MercatorProjection{}
	c := float64(tileSize)
	for z := 0; z <= Max2DClientLevel; z++ {
		p.pixelsPerLonDegree[z] = c / 360.0
		p.pixelsPerLonRadian[z] = c / (2 * math.Pi)
		p.pixelOrigin[z] = c / 2
		p.pixelsRange[z] = int64(c)
		c *= 2
	}
	return p
}

// FromLatLngToPixel 纬度先截断到 ±MaxLatitude，结果四舍五入并翻转为左下原点
func (p *MercatorProjection) FromLatLngToPixel(ll LatLng, zoom uint32) PixelPoint {
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, ll.Lat))
	o := p.pixelOrigin[zoom]
	x := math.Round(o + ll.Lng*p.pixelsPerLonDegree[zoom])
	siny := math.Sin(degToRad(lat))
	y := math.Round(o + 0.5*math.Log((1+siny)/(1-siny))*-p.pixelsPerLonRadian[zoom])
	return PixelPoint{X: int64(x), Y: p.pixelsRange[zoom] - int64(y)}
}

// FromPixelToLatLng FromLatLngToPixel 的逆运算
func (p *MercatorProjection) FromPixelToLatLng(px PixelPoint, zoom uint32) LatLng {
	o := p.pixelOrigin[zoom]
	lng := (float64(px.X) - o) / p.pixelsPerLonDegree[zoom]
	y := float64(p.pixelsRange[zoom] - px.Y)
	latRad := (y - o) / -p.pixelsPerLonRadian[zoom]
	lat := radToDeg(2*math.Atan(math.Exp(latRad)) - math.Pi/2)
	return LatLng{Lat: lat, Lng: lng}
}

// FromNormLatLngToPixel 输入为归一化坐标（见 Normalize）
func (p *MercatorProjection) FromNormLatLngToPixel(norm LatLng, zoom uint32) PixelPoint {
	return p.FromLatLngToPixel(LatLng{Lat: Denormalize(norm.Lat), Lng: Denormalize(norm.Lng)}, zoom)
}

// FromFlatDegLatitudeToMercatorMeterLatitude 球面 Mercator 纬度（度）转米，奇函数
func FromFlatDegLatitudeToMercatorMeterLatitude(lat float64) float64 {
	sign := 1.0
	if lat < 0 {
		sign, lat = -1.0, -lat
	}
	y := math.Log(math.Tan(math.Pi/4 + degToRad(lat)/2))
	return sign * y * MercatorEarthCircumference / (2 * math.Pi)
}

// FromMercatorMeterLatitudeToFlatDegLatitude 上式的逆运算
func FromMercatorMeterLatitudeToFlatDegLatitude(meters float64) float64 {
	sign := 1.0
	if meters < 0 {
		sign, meters = -1.0, -meters
	}
	r := meters * 2 * math.Pi / MercatorEarthCircumference
	return sign * radToDeg(2*math.Atan(math.Exp(r))-math.Pi/2)
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }
