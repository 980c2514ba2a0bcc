package observability

const (
	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"
	AttrErrorType        = "error.type"
	AttrLLMModel         = "llm.model"
	AttrToolName         = "tool.name"
	AttrManagerID        = "manager.id"
	AttrTaskID           = "task.id"

	SpanHTTPRequest   = "http.request"
	SpanLLMCall       = "llm.generate"
	SpanToolExecution = "tool.execute"
	SpanJob           = "worker.job"

	ServiceName = "agent-tcc"
)
