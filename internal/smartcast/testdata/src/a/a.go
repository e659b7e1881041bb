package a

type T struct {
	next *T
	name string
}

func reset(t *T) {}

func afterReturn(p *T) string {
	if p == nil {
		return ""
	}
	if p != nil { // want `redundant nil check: p is never nil here`
		return p.name
	}
	return ""
}

func declared() *T {
	var p *T
	if p == nil { // want `redundant nil check: p is always nil here`
		p = &T{}
	}
	return p
}

func negated(p *T) {
	if !(p != nil) {
		return
	}
	if p == nil { // want `redundant nil check: p is never nil here`
		return
	}
}

func both(p *T) string {
	if p != nil && p.next != nil {
		if p.next != nil { // want `redundant nil check: p.next is never nil here`
			return p.next.name
		}
	}
	return ""
}

func either(p, q *T) {
	if p == nil || q == nil {
		return
	}
	if p != nil { // want `redundant nil check: p is never nil here`
		return
	}
}

func viaBool(p *T) {
	ok := p != nil
	if ok {
		if p != nil { // want `redundant nil check: p is never nil here`
			return
		}
	}
}

func alias(p *T) {
	q := p
	if p != nil {
		if q != nil { // want `redundant nil check: q is never nil here`
			return
		}
	}
}

func loop(p *T) int {
	n := 0
	for p != nil {
		n++
		p = p.next
	}
	if p == nil { // want `redundant nil check: p is always nil here`
		return n
	}
	return -1
}

func assertTwice(v interface{}) int {
	n := v.(int)
	m := v.(int) // want `type assertion v.\(int\) always succeeds here`
	return n + m
}

func commaOk(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s + v.(string) // want `type assertion v.\(string\) always succeeds here`
}

func kinds(v interface{}) {
	switch v.(type) {
	case nil:
		if v == nil { // want `redundant nil check: v is always nil here`
			return
		}
	case error:
		_ = v.(error) // want `type assertion v.\(error\) always succeeds here`
	}
}

func fieldsAfterCall(p *T) {
	if p.next != nil {
		reset(p)
		if p.next != nil {
			p.next.name = ""
		}
	}
}

func reassigned(p *T) {
	if p == nil {
		return
	}
	p = p.next
	if p != nil {
		_ = p.name
	}
}

func closure(p *T) {
	if p == nil {
		return
	}
	func() { p = nil }()
	if p != nil {
		_ = p.name
	}
}

func addressTaken(p *T) {
	if p == nil {
		return
	}
	pp := &p
	*pp = nil
	if p != nil {
		_ = p.name
	}
}

func branches(p *T, c bool) {
	if c {
		if p == nil {
			return
		}
	}
	if p != nil {
		_ = p.name
	}
}

func gotoSkipped(p *T) {
	if p == nil {
		goto done
	}
	if p == nil {
		return
	}
done:
}

func aliasThenWrite(p *T) string {
	q := p
	p = nil
	if q != nil {
		return q.name
	}
	return ""
}

func declaredThenWritten(p *T) string {
	var q = p
	q = nil
	if p != nil {
		return p.name
	}
	return q.name
}

func detach(p *T) bool {
	p.next = nil
	return true
}

func callInRightOperand(p *T, c bool) int {
	if p.next == nil {
		return 0
	}
	n := 0
	if c && detach(p) {
		n++
	}
	if p.next != nil {
		n += 2
	}
	return n
}

func callInRightOperandOr(p *T, c bool) int {
	if p.next == nil {
		return 0
	}
	n := 0
	if c || detach(p) {
		n++
	}
	if p.next != nil {
		n += 2
	}
	return n
}

func noCallInRightOperand(p *T, c bool) int {
	if p.next == nil {
		return 0
	}
	n := 0
	if c && p.name != "" {
		n++
	}
	if p.next != nil { // want `redundant nil check: p.next is never nil here`
		n += 2
	}
	return n
}
