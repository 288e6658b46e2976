package ingest

import (
	"log"
	"os"
	"strings"
)

var ingestDebugEnabled = strings.EqualFold(os.Getenv("VIDEOQA_INGEST_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if ingestDebugEnabled {
		log.Printf(format, args...)
	}
}
