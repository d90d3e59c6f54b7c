// Command s3wire is a thin operational front end for the s3wire
// request core: it builds, signs and dispatches single S3 requests and
// prints the normalized result. It is deliberately not a full storage
// CLI; anything beyond one request per invocation belongs to richer
// tools.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(submain(context.Background()))
}
