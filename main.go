// ticketdesk loads domain tickets from delimited files, classifies them, and
// manages the per-domain stores from the command line.
//
// Usage:
//
//	ticketdesk ingest [--reset]
//	ticketdesk watch
//	ticketdesk tickets {list|create|update|delete|stats} --domain IT
//	ticketdesk users {register|login|passwd} --user alice --password ...
//	ticketdesk ask --domain CYBER --user alice --password ... "how many phishing incidents?"
//	ticketdesk chat {history|clear} --domain CYBER --user alice --password ...
package main

import "ticketdesk/internal/app"

func main() {
	app.Main()
}
