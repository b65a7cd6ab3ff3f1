// Package report renders scan reports.
//
// Writers for each output format implement the Writer interface:
//   - LineWriter: one "<ip>:<port> - <status> - <service>" line per port,
//     the format of the -o output file, read back by ParseLines
//   - ConsoleWriter: "Port N: status - service" lines for the terminal
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: a Markdown document for sharing
package report
