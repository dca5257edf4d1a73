package util

// PtrInt 用于将 int 转换为 *int
func PtrInt(i int) *int {
	return &i
}
