package email

const subjectRouteCompletedFmt = "Route completed: %s"
