package bounded

func branchy(p *int) int {
	if p == nil {
		return 0
	}
	if p != nil {
		return *p
	}
	return 1
}

func straight(v interface{}) int {
	n := v.(int)
	return n + v.(int) // want `type assertion v.\(int\) always succeeds here`
}
