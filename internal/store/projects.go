package store

import "context"

func GetProject(ctx context.Context, d Docs, id string) (*Project, error) {
	return Load[*Project](ctx, d, ProjectKey(id))
}

func GetProgress(ctx context.Context, d Docs, id string) (*ProgressUpdate, error) {
	return Load[*ProgressUpdate](ctx, d, ProgressKey(id))
}

func GetPayment(ctx context.Context, d Docs, id string) (*PaymentRequest, error) {
	return Load[*PaymentRequest](ctx, d, PaymentKey(id))
}

func GetUser(ctx context.Context, d Docs, email string) (*User, error) {
	return Load[*User](ctx, d, UserKey(email))
}

// ListProjects returns every project, or only those led by leaderID when it is set.
func ListProjects(ctx context.Context, d Docs, leaderID string) ([]*Project, error) {
	q := Query{Type: TypeProject}
	if leaderID != "" {
		q = q.Where("leaderId", leaderID)
	}
	return List[*Project](ctx, d, q)
}

func ProgressForProject(ctx context.Context, d Docs, projectID string) ([]*ProgressUpdate, error) {
	return List[*ProgressUpdate](ctx, d, Query{Type: TypeProgress}.Where("projectId", projectID))
}

func PaymentsForProject(ctx context.Context, d Docs, projectID string) ([]*PaymentRequest, error) {
	return List[*PaymentRequest](ctx, d, Query{Type: TypePayment}.Where("projectId", projectID))
}

func ListPayments(ctx context.Context, d Docs) ([]*PaymentRequest, error) {
	return List[*PaymentRequest](ctx, d, Query{Type: TypePayment})
}

func ListProgress(ctx context.Context, d Docs) ([]*ProgressUpdate, error) {
	return List[*ProgressUpdate](ctx, d, Query{Type: TypeProgress})
}

// ListUsers returns every user, or only those with role when it is set.
func ListUsers(ctx context.Context, d Docs, role Role) ([]*User, error) {
	q := Query{Type: TypeUser}
	if role != "" {
		q = q.Where("role", string(role))
	}
	return List[*User](ctx, d, q)
}

func ListVehicles(ctx context.Context, d Docs) ([]*Vehicle, error) {
	return List[*Vehicle](ctx, d, Query{Type: TypeVehicle})
}

func ListDrivers(ctx context.Context, d Docs) ([]*Driver, error) {
	return List[*Driver](ctx, d, Query{Type: TypeDriver})
}
