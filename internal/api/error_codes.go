// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 代理相关错误
	ErrorAgentNotFound     = "AGENT_NOT_FOUND"
	ErrorAgentInvalid      = "AGENT_INVALID"
	ErrorAgentCreateFailed = "AGENT_CREATE_FAILED"

	// 人格模板相关错误
	ErrorTemplateNotFound = "TEMPLATE_NOT_FOUND"
	ErrorTraitsInvalid    = "TRAITS_INVALID"

	// 情绪相关错误
	ErrorEmotionKindInvalid = "EMOTION_KIND_INVALID"
	ErrorStimulusInvalid    = "STIMULUS_INVALID"

	// 动作效果相关错误
	ErrorActionParamsInvalid = "ACTION_PARAMS_INVALID"
)
