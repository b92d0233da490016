package google

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// AuthorizeInteractive prints the consent URL to out, reads the
// authorization code from in and stores the resulting token.
func AuthorizeInteractive(ctx context.Context, auth *Auth, in io.Reader, out io.Writer) error {
	url := auth.AuthCodeURL(uuid.New().String())
	fmt.Fprintf(out, "Go to the following link in your browser, then paste the authorization code:\n\n%s\n\nCode: ", url)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("unable to read authorization code: %w", err)
		}
		return errors.New("no authorization code entered")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return errors.New("no authorization code entered")
	}

	if err := auth.Authorize(ctx, code); err != nil {
		return err
	}
	fmt.Fprintln(out, "Authorization stored.")
	return nil
}
