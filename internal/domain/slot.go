package domain

// Domain is a capacity-bounded topic teams claim exactly one of. Slots only
// decreases through successful allocation and never drops below zero.
type Domain struct {
	Code        string `json:"id"`
	Name        string `json:"name"`
	Slots       int    `json:"slots"`
	Description string `json:"description"`
	Set         string `json:"set"`
}

// DomainView is a Domain decorated for clients with a fullness flag.
type DomainView struct {
	Domain
	IsFull bool `json:"isFull"`
}

// ViewOf flags a domain as full once its capacity is exhausted.
func ViewOf(d Domain) DomainView {
	return DomainView{Domain: d, IsFull: d.Slots <= 0}
}

// DefaultDomainPool is the seed installed on first boot and reinstalled by the
// administrative hard reset.
func DefaultDomainPool() []Domain {
	return []Domain{
		{Code: "1", Name: "Cybersecurity", Slots: 10, Description: "Focus on digital security and defense.", Set: "Set 1"},
		{Code: "2", Name: "AI/ML", Slots: 10, Description: "Develop intelligent systems and models.", Set: "Set 1"},
		{Code: "3", Name: "Web Development", Slots: 10, Description: "Build modern web applications.", Set: "Set 2"},
		{Code: "4", Name: "Mobile App Dev", Slots: 10, Description: "Create applications for mobile devices.", Set: "Set 2"},
		{Code: "5", Name: "IoT", Slots: 10, Description: "Connect physical devices to the internet.", Set: "Set 3"},
		{Code: "6", Name: "Blockchain", Slots: 10, Description: "Work with decentralized technologies.", Set: "Set 3"},
		{Code: "7", Name: "Cloud Computing", Slots: 10, Description: "Leverage cloud platforms and services.", Set: "Set 1"},
		{Code: "8", Name: "Digital Learning Platforms", Slots: 10, Description: "Innovate in education technology.", Set: "Set 3"},
		{Code: "9", Name: "Student Engagement", Slots: 10, Description: "Enhance student interaction and experience.", Set: "Set 2"},
	}
}
