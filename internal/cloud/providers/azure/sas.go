package azure

import (
	"fmt"
	"strings"

	"github.com/odoobiznes/kms-fsnav/internal/config"
)

// buildSASURL constructs the Azure service URL, with its SAS query, from
// configuration. A configured URL wins; otherwise the account name is used.
func buildSASURL(az config.AzureConfig) (string, error) {
	token := strings.TrimPrefix(az.SASToken, "?")

	if az.SASURL != "" {
		sasURL := az.SASURL
		// Ensure SAS token is appended
		if !strings.Contains(sasURL, "?") && token != "" {
			sasURL = sasURL + "?" + token
		}
		return sasURL, nil
	}

	if az.AccountName == "" {
		return "", fmt.Errorf("Azure storage account name not found in configuration")
	}
	if token == "" {
		return "", fmt.Errorf("Azure SAS token not found in configuration")
	}

	// Format: https://{account}.blob.core.windows.net/?{sas_token}
	return fmt.Sprintf("https://%s.blob.core.windows.net/?%s", az.AccountName, token), nil
}
