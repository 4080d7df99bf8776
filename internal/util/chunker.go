package util

// Split cuts text into consecutive windows of at most size runes. With overlap > 0 every window
// after the first starts with the last overlap runes of the previous one. Windows are returned
// verbatim, so with overlap 0 joining the result reproduces text exactly.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = 4000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	out := make([]string, 0, len(runes)/step+1)
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
