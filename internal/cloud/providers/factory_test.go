package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/config"
)

func TestNewTransport(t *testing.T) {
	client := api.NewClientWithHTTP("http://localhost:8000/api", "", nil, nil)

	tests := []struct {
		name      string
		configure func(*config.Config)
		want      string
		wantErr   bool
	}{
		{"http", func(c *config.Config) {}, "http", false},
		{"s3", func(c *config.Config) {
			c.Transport = config.TransportS3
			c.S3 = config.S3Config{Bucket: "b", Region: "eu-west-1", AccessKeyID: "AKID", SecretAccessKey: "secret"}
		}, "s3", false},
		{"s3 without bucket", func(c *config.Config) { c.Transport = config.TransportS3 }, "", true},
		{"azure", func(c *config.Config) {
			c.Transport = config.TransportAzure
			c.Azure = config.AzureConfig{AccountName: "acct", SASToken: "sig=x", Container: "imports"}
		}, "azure", false},
		{"azure without container", func(c *config.Config) {
			c.Transport = config.TransportAzure
			c.Azure = config.AzureConfig{AccountName: "acct", SASToken: "sig=x"}
		}, "", true},
		{"unknown", func(c *config.Config) { c.Transport = "ftp" }, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.configure(cfg)

			tr, err := NewTransport(context.Background(), cfg, client, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Name())
		})
	}
}

func TestNewTransportHTTPRequiresClient(t *testing.T) {
	_, err := NewTransport(context.Background(), config.New(), nil, nil)
	assert.Error(t, err)
}
