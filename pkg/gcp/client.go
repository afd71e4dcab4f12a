package gcp

import (
	"context"
	"fmt"

	iamadmin "cloud.google.com/go/iam/admin/apiv1"
	"cloud.google.com/go/iam/admin/apiv1/adminpb"
	"cloud.google.com/go/iam/apiv1/iampb"
	"cloud.google.com/go/storage"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	iamv1 "google.golang.org/api/iam/v1"
	serviceusage "google.golang.org/api/serviceusage/v1"
)

// Client is the surface of the GCP APIs needed to provision a GitHub Actions
// workload identity federation on a project.
type Client interface {
	ProjectNumberFromId(ctx context.Context, projectId string) (int64, error)

	ListEnabledServices(ctx context.Context, projectId string) ([]string, error)
	EnableService(ctx context.Context, projectId, serviceName string) error

	GetWorkloadIdentityPool(ctx context.Context, resource string) (*iamv1.WorkloadIdentityPool, error)
	CreateWorkloadIdentityPool(ctx context.Context, parent, poolId string, pool *iamv1.WorkloadIdentityPool) (*iamv1.Operation, error)               //nolint:lll
	UpdateWorkloadIdentityPool(ctx context.Context, resource string, pool *iamv1.WorkloadIdentityPool, updateMask string) (*iamv1.Operation, error)  //nolint:lll
	UndeleteWorkloadIdentityPool(ctx context.Context, resource string, request *iamv1.UndeleteWorkloadIdentityPoolRequest) (*iamv1.Operation, error) //nolint:lll
	DeleteWorkloadIdentityPool(ctx context.Context, resource string) (*iamv1.Operation, error)

	GetWorkloadIdentityProvider(ctx context.Context, resource string) (*iamv1.WorkloadIdentityPoolProvider, error)
	CreateWorkloadIdentityProvider(ctx context.Context, parent, providerId string, provider *iamv1.WorkloadIdentityPoolProvider) (*iamv1.Operation, error)          //nolint:lll
	UpdateWorkloadIdentityProvider(ctx context.Context, resource string, provider *iamv1.WorkloadIdentityPoolProvider, updateMask string) (*iamv1.Operation, error) //nolint:lll
	DeleteWorkloadIdentityProvider(ctx context.Context, resource string) (*iamv1.Operation, error)

	GetProjectIamPolicy(ctx context.Context, projectId string, request *cloudresourcemanager.GetIamPolicyRequest) (*cloudresourcemanager.Policy, error) //nolint:lll
	SetProjectIamPolicy(ctx context.Context, projectId string, request *cloudresourcemanager.SetIamPolicyRequest) (*cloudresourcemanager.Policy, error) //nolint:lll

	GetServiceAccount(ctx context.Context, request *adminpb.GetServiceAccountRequest) (*adminpb.ServiceAccount, error)
	CreateServiceAccount(ctx context.Context, request *adminpb.CreateServiceAccountRequest) (*adminpb.ServiceAccount, error) //nolint:lll
	EnableServiceAccount(ctx context.Context, accountId, projectId string) error
	DeleteServiceAccount(ctx context.Context, accountId, projectId string, allowMissing bool) error
	GetServiceAccountAccessPolicy(ctx context.Context, resource string) (Policy, error)
	SetServiceAccountAccessPolicy(ctx context.Context, policy Policy) error

	StorageClient() *storage.Client
}

type gcpClient struct {
	iamClient            *iamadmin.IamClient
	wifClient            *iamv1.Service
	cloudResourceManager *cloudresourcemanager.Service
	serviceUsage         *serviceusage.Service
	storageClient        *storage.Client
}

// NewClient builds a Client using application default credentials.
func NewClient(ctx context.Context) (Client, error) {
	iamClient, err := iamadmin.NewIamClient(ctx)
	if err != nil {
		return nil, err
	}
	cloudResourceManager, err := cloudresourcemanager.NewService(ctx)
	if err != nil {
		return nil, err
	}
	serviceUsage, err := serviceusage.NewService(ctx)
	if err != nil {
		return nil, err
	}
	// The gRPC iam admin client doesn't support workload identity federation
	// operations, so pools and providers go through the REST service.
	wifClient, err := iamv1.NewService(ctx)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &gcpClient{
		iamClient:            iamClient,
		wifClient:            wifClient,
		cloudResourceManager: cloudResourceManager,
		serviceUsage:         serviceUsage,
		storageClient:        storageClient,
	}, nil
}

func (c *gcpClient) ProjectNumberFromId(ctx context.Context, projectId string) (int64, error) {
	project, err := c.cloudResourceManager.Projects.Get(projectId).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	return project.ProjectNumber, nil
}

func (c *gcpClient) ListEnabledServices(ctx context.Context, projectId string) ([]string, error) {
	var names []string
	call := c.serviceUsage.Services.List(fmt.Sprintf("projects/%s", projectId)).
		Filter("state:ENABLED").
		PageSize(200)
	err := call.Pages(ctx, func(response *serviceusage.ListServicesResponse) error {
		for _, service := range response.Services {
			if service.Config != nil {
				names = append(names, service.Config.Name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (c *gcpClient) EnableService(ctx context.Context, projectId, serviceName string) error {
	name := fmt.Sprintf("projects/%s/services/%s", projectId, serviceName)
	_, err := c.serviceUsage.Services.Enable(name, &serviceusage.EnableServiceRequest{}).Context(ctx).Do()
	return err
}

//nolint:lll
func (c *gcpClient) GetWorkloadIdentityPool(ctx context.Context, resource string) (*iamv1.WorkloadIdentityPool, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Get(resource).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) CreateWorkloadIdentityPool(ctx context.Context, parent, poolId string, pool *iamv1.WorkloadIdentityPool) (*iamv1.Operation, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Create(parent, pool).WorkloadIdentityPoolId(poolId).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) UpdateWorkloadIdentityPool(ctx context.Context, resource string, pool *iamv1.WorkloadIdentityPool, updateMask string) (*iamv1.Operation, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Patch(resource, pool).UpdateMask(updateMask).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) UndeleteWorkloadIdentityPool(ctx context.Context, resource string, request *iamv1.UndeleteWorkloadIdentityPoolRequest) (*iamv1.Operation, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Undelete(resource, request).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) DeleteWorkloadIdentityPool(ctx context.Context, resource string) (*iamv1.Operation, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Delete(resource).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) GetWorkloadIdentityProvider(ctx context.Context, resource string) (*iamv1.WorkloadIdentityPoolProvider, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Providers.Get(resource).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) CreateWorkloadIdentityProvider(ctx context.Context, parent, providerId string, provider *iamv1.WorkloadIdentityPoolProvider) (*iamv1.Operation, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Providers.Create(parent, provider).WorkloadIdentityPoolProviderId(providerId).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) UpdateWorkloadIdentityProvider(ctx context.Context, resource string, provider *iamv1.WorkloadIdentityPoolProvider, updateMask string) (*iamv1.Operation, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Providers.Patch(resource, provider).UpdateMask(updateMask).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) DeleteWorkloadIdentityProvider(ctx context.Context, resource string) (*iamv1.Operation, error) {
	return c.wifClient.Projects.Locations.WorkloadIdentityPools.Providers.Delete(resource).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) GetProjectIamPolicy(ctx context.Context, projectId string, request *cloudresourcemanager.GetIamPolicyRequest) (*cloudresourcemanager.Policy, error) {
	return c.cloudResourceManager.Projects.GetIamPolicy(projectId, request).Context(ctx).Do()
}

//nolint:lll
func (c *gcpClient) SetProjectIamPolicy(ctx context.Context, projectId string, request *cloudresourcemanager.SetIamPolicyRequest) (*cloudresourcemanager.Policy, error) {
	return c.cloudResourceManager.Projects.SetIamPolicy(projectId, request).Context(ctx).Do()
}

func (c *gcpClient) GetServiceAccount(
	ctx context.Context,
	request *adminpb.GetServiceAccountRequest,
) (*adminpb.ServiceAccount, error) {
	return c.iamClient.GetServiceAccount(ctx, request)
}

func (c *gcpClient) CreateServiceAccount(
	ctx context.Context,
	request *adminpb.CreateServiceAccountRequest,
) (*adminpb.ServiceAccount, error) {
	return c.iamClient.CreateServiceAccount(ctx, request)
}

func (c *gcpClient) EnableServiceAccount(ctx context.Context, accountId, projectId string) error {
	return c.iamClient.EnableServiceAccount(ctx, &adminpb.EnableServiceAccountRequest{
		Name: FmtSaResourceId(accountId, projectId),
	})
}

func (c *gcpClient) DeleteServiceAccount(ctx context.Context, accountId, projectId string, allowMissing bool) error {
	err := c.iamClient.DeleteServiceAccount(ctx, &adminpb.DeleteServiceAccountRequest{
		Name: FmtSaResourceId(accountId, projectId),
	})
	if err != nil {
		if allowMissing && IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

func (c *gcpClient) GetServiceAccountAccessPolicy(ctx context.Context, resource string) (Policy, error) {
	iamPolicy, err := c.iamClient.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{
		Resource: resource,
	})
	if err != nil {
		return nil, err
	}
	return &policy{
		policy:     iamPolicy,
		resourceId: resource,
	}, nil
}

func (c *gcpClient) SetServiceAccountAccessPolicy(ctx context.Context, policy Policy) error {
	_, err := c.iamClient.SetIamPolicy(ctx, &iamadmin.SetIamPolicyRequest{
		Resource: policy.ResourceId(),
		Policy:   policy.IamPolicy(),
	})
	return err
}

func (c *gcpClient) StorageClient() *storage.Client {
	return c.storageClient
}
