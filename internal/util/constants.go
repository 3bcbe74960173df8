package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 头像上传相关常量
const (
	MimeImage = "image/"
)

var (
	AllowedAvatarExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)
