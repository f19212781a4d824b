package Store

import (
	"path"
)

// SQLiteBundleName sqlite 后端下所有图层共用的文件名，各图层以表名前缀区分
const SQLiteBundleName = "maptiles.g3db"

// getDBPath 根据存储类型和图层名生成瓦片包文件路径
// 参数:
//
//	dbdir: 数据库根目录
//	layer: 图层名（bbolt 每个图层一个文件）
//	storageType: 存储类型("sqlite" 或 "bbolt")
//
// 返回:
//
//	string: 完整的数据库文件路径
func getDBPath(dbdir, layer string, storageType StorageBackend) string {
	// 根据存储类型确定子目录
	var subDir string
	switch storageType {
	case BackendSQLite:
		return path.Join(dbdir, "sqlite", SQLiteBundleName)
	case BackendBBolt:
		subDir = "bbolt"
	default:
		subDir = string(storageType) // fallback to storage type name
	}
	return path.Join(dbdir, subDir, sanitizeTableName(layer)+".g3db")
}

// GetDBPath 暴露 getDBPath 供外部使用
func GetDBPath(dbdir, layer string, storageType StorageBackend) string {
	return getDBPath(dbdir, layer, storageType)
}
