package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")

	flags.String("base-dir", "", "State directory for the import manifest, note index and locks")
	flags.String("vault-dir", "", "Root directory of the note vault")
	flags.String("notes-folder", "", "Vault folder for imported notes")
	flags.String("media-folder", "", "Vault folder for archive attachments")
	flags.StringSlice("archives", nil, "Archives imported at startup (comma-separated)")
	flags.Duration("decompress-timeout", 0, "Time budget for decompressing one archive")
	flags.Duration("lock-timeout", 0, "Maximum wait for the import locks")
	flags.Bool("overwrite", false, "Replace existing notes in place and re-import unchanged archives")
	flags.StringSlice("property-aliases", nil, "Frontmatter key aliases as canonical=custom pairs")
	flags.Int("max-results", 0, "Maximum number of search results")
	flags.String("watch-dir", "", "Inbox directory watched for new archives")
	flags.Bool("metrics-enabled", false, "Serve Prometheus metrics on /metrics (sse transport only)")
}

// RegisterImportFlags registers the flags of the one-shot import command
func RegisterImportFlags(flags *pflag.FlagSet) {
	flags.StringP("folder", "f", "", "Vault folder for the notes (defaults to notes-folder)")
}
