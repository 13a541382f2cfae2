package mcpserver

// ArchiveLayout describes how the archive is laid out, so that LLM
// consumers can interpret paths returned by the tools.
const ArchiveLayout = `# Archive Layout

Every photo organized into the archive lives at

` + "```" + `
<archive>/YYYY/YYYY_MM/YYYY-MM-DD_HH-MM-SS.<ext>
` + "```" + `

## Rules

1. The timestamp is the capture time: EXIF DateTimeOriginal, then the date in
   the file name, then the file modification time.
2. Extensions are lower-case.
3. When two different photos share a capture second, the later one gets a
   numeric suffix: ` + "`" + `2023-12-25_14-30-22_001.jpg` + "`" + `, ` + "`" + `_002` + "`" + `, and so on.
4. A file whose content already exists at its destination is a duplicate and is
   left where it was.
5. Sources are never modified until their copy has been verified by SHA-256.
6. The ledger maps each original source path to its archive path; looking it up
   tells you where a photo went.

## Drives

Backup drives keep a hidden ` + "`" + `.archivist_drive_index.sqlite` + "`" + ` at their root
with the relative path, size and checksum of every file. Comparing two drives
reports files only on A, only on B, and files present on both with different
content. Differing files are never overwritten.
`
