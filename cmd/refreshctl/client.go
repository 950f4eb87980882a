package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/rest/httpc"

	"nof0-refresh/internal/types"
)

// call sends req to the refresher and decodes a 2xx body into resp.
func call(ctx context.Context, method, path string, req, resp any) error {
	url := strings.TrimRight(serverURL, "/") + path
	res, err := httpc.Do(ctx, method, url, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		body, _ := io.ReadAll(res.Body)
		var apiErr types.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, res.Status, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, res.Status)
	}
	if resp == nil {
		return nil
	}
	return httpc.Parse(res, resp)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestLimit)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
