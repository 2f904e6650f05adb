package classify

import "context"

// Backend 定义一次分类调用的后端。
//
// 输入是拼装好的邮件摘要 prompt，输出是后端返回的原始标签文本，
// 由 MapCategory 统一归一化到分类闭集。
type Backend interface {
	// Name 返回后端名称，用于日志与健康信息。
	Name() string

	// Classify 对单封邮件摘要执行分类，返回原始标签文本。
	Classify(ctx context.Context, prompt string) (string, error)
}
