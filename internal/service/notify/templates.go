package notify

import "fmt"

// RegistrationPending is the mail sent right after a team registers.
func RegistrationPending(leadName, teamName string) Message {
	return Message{
		Subject: fmt.Sprintf("Your team %s is under verification", teamName),
		Body: fmt.Sprintf("Hi %s,\n\nYour team %s has been registered and is awaiting payment verification. "+
			"You will receive your login credential once an organizer verifies the team.\n", leadName, teamName),
	}
}

// TeamVerified is the mail sent when an organizer verifies a team.
func TeamVerified(leadName, teamName, credential string) Message {
	return Message{
		Subject: fmt.Sprintf("Your team %s is verified", teamName),
		Body: fmt.Sprintf("Hi %s,\n\nTeam %s is verified. Log in with credential %s at the event portal.\n",
			leadName, teamName, credential),
	}
}
