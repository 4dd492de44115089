package worker

import (
	"github.com/hibiken/asynq"
)

func RegisterHandlers(mux *asynq.ServeMux, handler *ProcessingTaskHandler) {
	mux.HandleFunc(TypeReceiptExtract, handler.Handle)
}
