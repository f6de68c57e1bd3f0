// Command custodyctl checks a running custody API: it verifies the audit
// chain, verifies anchor blocks by merkle root and uploads attachments.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/yourorg/custodian/internal/anchor"
	"github.com/yourorg/custodian/internal/auditlog"
)

const usage = `usage: custodyctl [-server URL] [-token TOKEN] <command>

commands:
  verify-log                  verify the audit chain
  verify <merkle_root>        verify an anchor block and its attachment
  upload <file> [prev_hash]   anchor a file (prev_hash defaults to GENESIS)
`

var (
	pass = color.New(color.FgGreen, color.Bold).SprintFunc()
	fail = color.New(color.FgRed, color.Bold).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("custodyctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	server := fs.String("server", envOr("CUSTODY_SERVER", "http://localhost:8080"), "custody API base URL")
	token := fs.String("token", os.Getenv("CUSTODY_TOKEN"), "share token sent as bearer")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	c := &client{
		base:  strings.TrimRight(*server, "/"),
		token: *token,
		http:  &http.Client{Timeout: *timeout},
	}

	var ok bool
	var err error
	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "verify-log":
		ok, err = c.verifyLog(ctx, stdout)
	case "verify":
		if len(rest) != 1 {
			fs.Usage()
			return 2
		}
		ok, err = c.verifyBlock(ctx, stdout, rest[0])
	case "upload":
		if len(rest) < 1 || len(rest) > 2 {
			fs.Usage()
			return 2
		}
		prev := auditlog.Genesis
		if len(rest) == 2 {
			prev = rest[1]
		}
		ok, err = c.upload(ctx, stdout, rest[0], prev)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", fail("ERROR"), err)
		return 1
	}
	if !ok {
		return 1
	}
	return 0
}

type client struct {
	base  string
	token string
	http  *http.Client
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *client) do(req *http.Request, v any, accept ...int) (int, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && !slices.Contains(accept, resp.StatusCode) {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return resp.StatusCode, fmt.Errorf("%s %s: %s (%s)", req.Method, req.URL.Path, apiErr.Message, apiErr.Code)
		}
		return resp.StatusCode, fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *client) verifyLog(ctx context.Context, out io.Writer) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/audit-log/verify", nil)
	if err != nil {
		return false, err
	}
	var result auditlog.VerifyResult
	if _, err := c.do(req, &result); err != nil {
		return false, err
	}
	if result.Verified {
		fmt.Fprintf(out, "%s audit chain intact: %d entries\n", pass("PASS"), result.LogCount)
		return true, nil
	}
	fmt.Fprintf(out, "%s %s\n", fail("FAIL"), result.Message)
	if result.BrokenAt != "" {
		fmt.Fprintf(out, "     %s %s\n", dim("broken at"), result.BrokenAt)
	}
	return false, nil
}

func (c *client) verifyBlock(ctx context.Context, out io.Writer, root string) (bool, error) {
	q := url.Values{"merkle_root": {root}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/verify?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	var result anchor.VerifyResult
	if _, err := c.do(req, &result, http.StatusNotFound); err != nil {
		return false, err
	}
	if result.Success {
		fmt.Fprintf(out, "%s %s\n", pass("PASS"), result.Message)
	} else {
		fmt.Fprintf(out, "%s [%s] %s\n", fail("FAIL"), result.Status, result.Message)
	}
	if result.Block != nil {
		fmt.Fprintf(out, "     %s %s\n", dim("anchored at"), result.Block.Timestamp)
		fmt.Fprintf(out, "     %s %s\n", dim("btc/usd"), result.Block.BTCUSDAnchor)
		fmt.Fprintf(out, "     %s %s\n", dim("image sha256"), result.Block.ImageSHA256)
	}
	if result.RecomputedHash != "" && !result.Success {
		fmt.Fprintf(out, "     %s %s\n", dim("recomputed"), result.RecomputedHash)
	}
	return result.Success, nil
}

func (c *client) upload(ctx context.Context, out io.Writer, path, prevHash string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image_file", filepath.Base(path))
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.WriteField("prev_hash", prevHash); err != nil {
		return false, err
	}
	if err := mw.Close(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/upload", body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var result anchor.UploadResult
	if _, err := c.do(req, &result); err != nil {
		return false, err
	}
	if result.MerkleRoot == "" {
		return false, errors.New("upload response carried no merkle_root")
	}
	fmt.Fprintf(out, "%s anchored %s\n", pass("OK"), filepath.Base(path))
	fmt.Fprintf(out, "     %s %s\n", dim("merkle root"), result.MerkleRoot)
	fmt.Fprintf(out, "     %s %s\n", dim("attachment"), result.AttachmentPath)
	return true, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
