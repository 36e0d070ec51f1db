package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message），可选包装底层错误（Err）
//   - 支持错误检查函数（IsXXX），兼容 fmt.Errorf("%w") 包装后的错误
//
// 错误分类：
//   - 数据质量问题（字段格式错误、缺失值）从不返回错误，而是降级为缺失值或默认值
//   - 配置错误（未拟合就 transform、没有任何模型加载成功）：NOT_FITTED, NO_MODELS
//   - 存储错误：NOT_FOUND, NOT_SUPPORTED, UNAVAILABLE
//   - 输入错误：INVALID_INPUT
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_FITTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "feature", "ensemble"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 让 errors.Is 按 Module + Code 匹配，包装了底层错误的实例与哨兵错误视为同一类。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误是否为 DomainError 类型
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeNotFitted     = "NOT_FITTED"     // 转换器状态未拟合/未加载
	ErrorCodeNoModels      = "NO_MODELS"      // 没有任何模型可用
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 制品存储
	ModuleFeature  = "feature"  // 特征编码
	ModuleModel    = "model"    // 模型制品
	ModuleEnsemble = "ensemble" // 集成预测
	ModuleEval     = "eval"     // 模型评估
	ModuleSheet    = "sheet"    // 表格读写
	ModuleConfig   = "config"   // 配置
	ModulePipeline = "pipeline" // 流水线编排
)

var (
	// ErrNotFitted 表示在拟合/加载转换器状态之前调用了 Transform
	ErrNotFitted = NewDomainError(ModuleFeature, ErrorCodeNotFitted, "feature: transformer state not fitted or loaded")

	// ErrNoModels 表示模型注册表中没有任何模型加载成功
	ErrNoModels = NewDomainError(ModuleEnsemble, ErrorCodeNoModels, "ensemble: no model could be loaded")
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsConfigurationError 检查错误是否属于必须终止整次运行的配置类错误
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrorCodeNotFitted) || hasCode(err, ErrorCodeNoModels)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
