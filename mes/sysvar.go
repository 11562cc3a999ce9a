package mes

// nrSystemVariables bounds both system-variable name tables; an index at
// or beyond it is not a known system variable and the pretty-printer falls
// back to a raw indexed form.
const nrSystemVariables = 26

// systemVar16Names names the subset of the 16-bit system-variable slots the
// engine actually uses; unnamed slots print as a blank string, which the
// printer treats the same as an unknown index.
var systemVar16Names = [nrSystemVariables]string{
	2:  "flags",
	5:  "text_home_x",
	6:  "text_home_y",
	7:  "width",
	8:  "height",
	9:  "text_cursor_x",
	10: "text_cursor_y",
	12: "font_width",
	13: "font_height",
	15: "font_width2",
	16: "font_height2",
	23: "mask_color",
}

// systemVar32Names names the subset of the 32-bit system-variable
// (pointer-width) slots the engine actually uses.
var systemVar32Names = [nrSystemVariables]string{
	0: "memory",
	5: "palette",
	7: "file_data",
	8: "menu_entry_addresses",
	9: "menu_entry_numbers",
}

// systemVar16Name returns the name for index no, or "" if no is out of
// range or unnamed.
func systemVar16Name(no uint8) string {
	if int(no) >= nrSystemVariables {
		return ""
	}
	return systemVar16Names[no]
}

// systemVar32Name returns the name for index no, or "" if no is out of
// range or unnamed.
func systemVar32Name(no uint8) string {
	if int(no) >= nrSystemVariables {
		return ""
	}
	return systemVar32Names[no]
}

// findSystemVar16Index reverses systemVar16Names, for the text re-parser's
// "System.<name>" references.
func findSystemVar16Index(name string) (byte, bool) {
	for i, n := range systemVar16Names {
		if n == name {
			return byte(i), true
		}
	}
	return 0, false
}

// findSystemVar32Index reverses systemVar32Names.
func findSystemVar32Index(name string) (byte, bool) {
	for i, n := range systemVar32Names {
		if n == name {
			return byte(i), true
		}
	}
	return 0, false
}
