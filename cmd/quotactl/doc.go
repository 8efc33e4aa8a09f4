// Command quotactl inspects and edits the usage quota database of the
// compression service.
//
// Usage:
//
//	quotactl <command> [client-ip]
//
// Commands:
//
//	usage    Show the allowance of one client.
//	pro      Mark a client as pro: unlimited jobs and the pro file size limit.
//	revoke   Return a client to the free tier.
//	purge    Delete free-tier records older than the retention period.
//
// Environment:
//
//	DATA_DIR     - Path to data directory (default: ./data)
//	QUOTA_SECRET - Must match the server's; read from the terminal if unset
//
// Client ids are stored as keyed hashes, so a client can only be found with
// the same secret the server uses.
package main
