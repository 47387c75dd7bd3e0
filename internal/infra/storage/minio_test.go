package storage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectURL(t *testing.T) {
	u, _ := url.Parse("https://minio.internal:9000")
	assert.Equal(t, "https://minio.internal:9000/audit-reports/reports/acme/r1.xlsx",
		objectURL(u, "audit-reports", "reports/acme/r1.xlsx"))
}
