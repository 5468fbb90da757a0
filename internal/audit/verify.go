package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Report describes a chain verification: intact, or where it broke.
type Report struct {
	Intact  bool   `json:"intact"`
	Entries int    `json:"entries"`
	Problem string `json:"problem,omitempty"`
	AtLine  int    `json:"at_line,omitempty"`
}

// Verify walks the log and checks every prev_hash link.
func Verify(path string) Report {
	f, err := os.Open(path)
	if err != nil {
		return Report{Problem: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNum := 0
	want := Genesis
	for sc.Scan() {
		lineNum++
		line := append([]byte(nil), sc.Bytes()...)

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return Report{Problem: fmt.Sprintf("parse: %v", err), AtLine: lineNum}
		}
		if ev.PrevHash != want {
			return Report{
				Problem: fmt.Sprintf("chain broken: prev_hash %s, expected %s", ev.PrevHash, want),
				AtLine:  lineNum,
			}
		}
		want = hashLine(line)
	}
	if err := sc.Err(); err != nil {
		return Report{Problem: fmt.Sprintf("scan: %v", err)}
	}
	return Report{Intact: true, Entries: lineNum}
}
