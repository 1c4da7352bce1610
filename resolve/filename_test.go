package resolve

import "testing"

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want FilenameParts
		ok   bool
	}{
		{
			name: "full convention with date",
			in:   "Acme_RSP_Lease Renewal_2024-03-01.pdf",
			want: FilenameParts{Company: "Acme", Property: "RSP", Description: "Lease Renewal", Date: "2024-03-01"},
			ok:   true,
		},
		{
			name: "no trailing date",
			in:   "Acme_RSP_Insurance Certificate.docx",
			want: FilenameParts{Company: "Acme", Property: "RSP", Description: "Insurance Certificate"},
			ok:   true,
		},
		{
			name: "multi-field description keeps underscores",
			in:   "Acme_RSP_Q1_Rent_Roll_2024-04-15.xlsx",
			want: FilenameParts{Company: "Acme", Property: "RSP", Description: "Q1_Rent_Roll", Date: "2024-04-15"},
			ok:   true,
		},
		{
			name: "path prefix stripped",
			in:   "/tmp/uploads/Acme_RSP_Notice_2024-06-30.pdf",
			want: FilenameParts{Company: "Acme", Property: "RSP", Description: "Notice", Date: "2024-06-30"},
			ok:   true,
		},
		{
			name: "date match is syntactic only",
			in:   "Acme_RSP_2024-13-99.pdf",
			want: FilenameParts{Company: "Acme", Property: "RSP", Description: "", Date: "2024-13-99"},
			ok:   true,
		},
		{name: "too few fields", in: "scan001.pdf", ok: false},
		{name: "two fields", in: "Acme_Notes.txt", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFilename(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseFilename(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseFilename(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
