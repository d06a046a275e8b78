package psi

import "fmt"

// Table ids from ISO/IEC 13818-1.
const (
	TableIDPAT uint8 = 0x00
	TableIDCAT uint8 = 0x01
	TableIDPMT uint8 = 0x02
)

// Table is one instance of a PSI table: the set of long sections sharing
// table_id, table_id_extension, and version, indexed by section_number.
// The zero value is an empty table; the first section added fixes its
// identity.
type Table struct {
	sections []*Section
	tableID  uint8
	tidExt   uint16
	version  uint8
	bound    bool
}

// AddSection adds one long section. The first section binds the table's
// identity; later sections must match it and declare the same
// last_section_number. A duplicate section_number replaces the earlier one.
func (t *Table) AddSection(s *Section) error {
	if s == nil || !s.IsLong() {
		return fmt.Errorf("psi: table sections must be long sections")
	}
	if !t.bound {
		t.tableID = s.TableID()
		t.tidExt = s.TableIDExtension()
		t.version = s.Version()
		t.sections = make([]*Section, int(s.LastSectionNumber())+1)
		t.bound = true
	} else {
		if s.TableID() != t.tableID || s.TableIDExtension() != t.tidExt || s.Version() != t.version {
			return fmt.Errorf("psi: section tid=0x%02X ext=0x%04X v=%d does not belong to table tid=0x%02X ext=0x%04X v=%d",
				s.TableID(), s.TableIDExtension(), s.Version(), t.tableID, t.tidExt, t.version)
		}
		if int(s.LastSectionNumber())+1 != len(t.sections) {
			return fmt.Errorf("psi: last_section_number changed within table")
		}
	}
	t.sections[s.SectionNumber()] = s
	return nil
}

// TableID returns the table_id, or 0 before any section is added.
func (t *Table) TableID() uint8 { return t.tableID }

// TableIDExtension returns the table_id_extension of the table.
func (t *Table) TableIDExtension() uint16 { return t.tidExt }

// Version returns the 5-bit version number of the table.
func (t *Table) Version() uint8 { return t.version }

// SectionCount returns last_section_number+1, or 0 for an empty table.
func (t *Table) SectionCount() int { return len(t.sections) }

// SectionAt returns the section with the given section_number, or nil when
// it has not been added.
func (t *Table) SectionAt(i int) *Section {
	if i < 0 || i >= len(t.sections) {
		return nil
	}
	return t.sections[i]
}

// IsComplete reports whether every section up to last_section_number is
// present.
func (t *Table) IsComplete() bool {
	if !t.bound {
		return false
	}
	for _, s := range t.sections {
		if s == nil {
			return false
		}
	}
	return true
}
