package handler

import "net/http"

// Health はプロセスの生存確認に応答する。healthcheckサブコマンドが使用する。
// GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
